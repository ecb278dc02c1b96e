// Command keys plays a running polysynth from the computer keyboard.
//
// The home row and the row above it form the 18-key layout. A terminal only
// reports presses, so a key is held while it auto-repeats and released once
// it has been quiet for -hold. '+' and '-' move the aftertouch of held keys.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

const layout = "awsedftgyhujkolp;'"

const (
	keyCtrlC  = 0x03
	keyEscape = 0x1b
	touchStep = 10.0
)

var (
	sockFileName = flag.String("sock", "/tmp/polysynth.sock", "unix socket of the synth")
	hold         = flag.Duration("hold", 400*time.Millisecond, "release a key after this much silence")
)

func main() {
	flag.Parse()
	log.SetFlags(log.Lshortfile)

	conn, err := net.Dial("unix", *sockFileName)
	if err != nil {
		log.Fatalf("error: %v\n", err)
	}
	defer conn.Close()

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		log.Fatalf("error: stdin is not a terminal\n")
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		log.Fatalf("error: %v\n", err)
	}
	defer term.Restore(fd, oldState)
	fmt.Print("keys: " + layout + "  +/- aftertouch  esc quit\r\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := newPlayer(conn, *hold)
	defer p.releaseAll()

	// stdin cannot be interrupted, so the reader is not waited for
	done := make(chan error, 1)
	go func() {
		done <- readKeys(ctx, bufio.NewReader(os.Stdin), p)
	}()
	go func() {
		// drain reports so the synth never blocks on a full socket
		scanner := bufio.NewScanner(conn)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
		}
		log.Print("synth disconnected\r\n")
		cancel()
	}()
	select {
	case err := <-done:
		if err != nil {
			log.Printf("error: %v\r\n", err)
		}
	case <-ctx.Done():
	}
}

func readKeys(ctx context.Context, r *bufio.Reader, p *player) error {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		switch b {
		case keyCtrlC, keyEscape:
			return nil
		case '+':
			p.touch(touchStep)
		case '-':
			p.touch(-touchStep)
		default:
			if i := keyIndex(b); i >= 0 {
				p.press(i)
			}
		}
	}
}

func keyIndex(b byte) int {
	return strings.IndexByte(layout, b)
}

// ----- Player ----- //

type heldKey struct {
	timer *time.Timer
	id    uint64
}

type player struct {
	mu     sync.Mutex
	conn   net.Conn
	hold   time.Duration
	held   map[int]heldKey
	nextID uint64
	touchX float64
}

func newPlayer(conn net.Conn, hold time.Duration) *player {
	return &player{
		conn: conn,
		hold: hold,
		held: make(map[int]heldKey),
	}
}

func (p *player) send(command string) {
	if _, err := p.conn.Write([]byte(command + "\n")); err != nil {
		log.Printf("failed to send %q: %v\r\n", command, err)
	}
}

func (p *player) press(i int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if h, ok := p.held[i]; ok && h.timer.Stop() {
		// auto-repeat of a held key
		h.timer.Reset(p.hold)
		return
	}
	p.send(fmt.Sprintf("press %d %v", i, p.touchX))
	p.nextID++
	id := p.nextID
	p.held[i] = heldKey{
		timer: time.AfterFunc(p.hold, func() {
			p.release(i, id)
		}),
		id: id,
	}
}

// release ignores presses that were replaced by a later one.
func (p *player) release(i int, id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if h, ok := p.held[i]; !ok || h.id != id {
		return
	}
	delete(p.held, i)
	p.send(fmt.Sprintf("key_up %d", i))
}

func (p *player) touch(delta float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.touchX += delta
	for i := range p.held {
		p.send(fmt.Sprintf("touch %d %v", i, p.touchX))
	}
}

func (p *player) releaseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, h := range p.held {
		h.timer.Stop()
		delete(p.held, i)
		p.send(fmt.Sprintf("key_up %d", i))
	}
}
