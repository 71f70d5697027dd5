package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/harunnryd/torque/internal/audio"
	"github.com/harunnryd/torque/internal/concurrency"
	"github.com/harunnryd/torque/internal/conversation"
	torqueErrors "github.com/harunnryd/torque/internal/errors"
	"github.com/harunnryd/torque/internal/shop"

	"github.com/google/shlex"
)

const replHelp = `Commands:
  /connect, /disconnect, /toggle    manage the assistant session
  /talk, /stop                      push-to-talk (manual turn detection)
  /say <text>                       send a typed message (plain lines do the same)
  /customer find <query>            search customers
  /customer use <id>                select a customer
  /customer clear                   clear the selection
  /vehicle                          list vehicles of the selected customer
  /vehicle use <id>                 select a vehicle
  /research <problem> [finding...]  set research context
  /research clear                   clear research context
  /items, /log, /memory, /status    inspect the session
  /delete <item-id>                 delete a conversation item
  /spectrum [capture|playback]      show the current audio spectrum
  /exit                             quit`

type REPL struct {
	ctx    context.Context
	c      *components
	reader *bufio.Reader

	outMu sync.Mutex
	out   io.Writer
}

func NewREPL(ctx context.Context, c *components, in io.Reader, out io.Writer) *REPL {
	return &REPL{
		ctx:    ctx,
		c:      c,
		reader: bufio.NewReader(in),
		out:    out,
	}
}

func (r *REPL) printf(format string, args ...interface{}) {
	r.outMu.Lock()
	defer r.outMu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

func (r *REPL) Start(autoConnect bool) error {
	events, cancel := r.c.controller.Subscribe(256)
	defer cancel()
	concurrency.SafeGo(func() { r.printEvents(events) }, nil)

	r.printf("Torque assistant (%s turns). Type /help for commands.\n", turnMode(r.c.cfg.Realtime.TurnDetection))
	if autoConnect {
		r.report(r.c.controller.Connect(r.ctx))
	}

	lines := make(chan string)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	concurrency.SafeGo(func() { r.readLines(lines, readErr, done) }, nil)

	for {
		r.printf("> ")
		select {
		case <-r.ctx.Done():
			return nil
		case err := <-readErr:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		case line := <-lines:
			if err := r.execute(line); err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				r.report(err)
			}
		}
	}
}

// readLines forwards stdin lines until input ends or done is closed. errs must be
// buffered.
func (r *REPL) readLines(lines chan<- string, errs chan<- error, done <-chan struct{}) {
	for {
		text, err := r.reader.ReadString('\n')
		if text != "" {
			select {
			case lines <- text:
			case <-done:
				return
			case <-r.ctx.Done():
				return
			}
		}
		if err != nil {
			errs <- err
			return
		}
	}
}

func turnMode(mode string) string {
	if strings.TrimSpace(mode) == "" {
		return "manual"
	}
	return mode
}

func (r *REPL) report(err error) {
	if err == nil {
		return
	}
	r.printf("error: %s\n", torqueErrors.UserMessage(err))
}

// execute runs one input line. io.EOF means the user asked to quit.
func (r *REPL) execute(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		return r.c.controller.SendText(r.ctx, line)
	}

	parts, err := shlex.Split(line)
	if err != nil {
		parts = strings.Fields(line)
	}
	if len(parts) == 0 {
		return nil
	}
	cmd, args := parts[0], parts[1:]
	ctrl := r.c.controller

	switch cmd {
	case "/exit", "/quit":
		return io.EOF
	case "/help":
		r.printf("%s\n", replHelp)
	case "/connect":
		return ctrl.Connect(r.ctx)
	case "/disconnect":
		ctrl.Disconnect()
	case "/toggle":
		return ctrl.ToggleConnection(r.ctx)
	case "/talk":
		if err := ctrl.StartTalk(r.ctx); err != nil {
			return err
		}
		r.printf("recording... /stop to send\n")
	case "/stop":
		return ctrl.StopTalk(r.ctx)
	case "/say":
		return ctrl.SendText(r.ctx, strings.Join(args, " "))
	case "/customer":
		return r.customer(args)
	case "/vehicle":
		return r.vehicle(args)
	case "/research":
		return r.research(args)
	case "/items":
		r.printItems()
	case "/log":
		for _, e := range ctrl.LogEntries() {
			r.printf("%8s  %-6s %-50s x%d\n", e.Time.Truncate(1e6), e.Source, e.Type, e.Count)
		}
	case "/memory":
		r.printMemory()
	case "/status":
		r.printStatus()
	case "/delete":
		if len(args) != 1 {
			return torqueErrors.InvalidInput("usage: /delete <item-id>")
		}
		return ctrl.DeleteItem(r.ctx, args[0])
	case "/spectrum":
		which := audio.SourcePlayback
		if len(args) > 0 && args[0] == "capture" {
			which = audio.SourceCapture
		}
		r.printf("%s %s\n", which, spectrumBar(ctrl.Frequencies(which), 32))
	default:
		return torqueErrors.InvalidInput("unknown command " + cmd + " (try /help)")
	}
	return nil
}

func (r *REPL) customer(args []string) error {
	if len(args) == 0 {
		return torqueErrors.InvalidInput("usage: /customer find <query> | use <id> | clear")
	}
	switch args[0] {
	case "find":
		customers, err := r.c.backend.SearchCustomers(r.ctx, strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		if len(customers) == 0 {
			r.printf("no customers found\n")
			return nil
		}
		for _, c := range customers {
			r.printf("%-12s %-24s %s\n", c.ID, c.FullName(), c.Phone)
		}
	case "use":
		if len(args) != 2 {
			return torqueErrors.InvalidInput("usage: /customer use <id>")
		}
		c, err := r.c.backend.GetCustomer(r.ctx, args[1])
		if err != nil {
			return err
		}
		r.c.shop.SetCustomer(c)
		r.printf("selected %s\n", c.FullName())
	case "clear":
		r.c.shop.SetCustomer(nil)
	default:
		return torqueErrors.InvalidInput("unknown /customer action " + args[0])
	}
	return nil
}

func (r *REPL) vehicle(args []string) error {
	snap := r.c.shop.Snapshot()
	if snap.Customer == nil {
		return torqueErrors.InvalidInput("select a customer first")
	}
	vehicles, err := r.c.backend.ListVehicles(r.ctx, snap.Customer.ID)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		if len(vehicles) == 0 {
			r.printf("%s has no vehicles on file\n", snap.Customer.FullName())
		}
		for _, v := range vehicles {
			r.printf("%-12s %-28s %s\n", v.ID, v.Describe(), v.VIN)
		}
		return nil
	}

	switch args[0] {
	case "use":
		if len(args) != 2 {
			return torqueErrors.InvalidInput("usage: /vehicle use <id>")
		}
		for _, v := range vehicles {
			if v.ID == args[1] {
				r.c.shop.SetVehicle(&v)
				r.printf("selected %s\n", v.Describe())
				return nil
			}
		}
		return torqueErrors.NotFound("vehicle " + args[1])
	case "clear":
		r.c.shop.SetVehicle(nil)
		return nil
	default:
		return torqueErrors.InvalidInput("unknown /vehicle action " + args[0])
	}
}

func (r *REPL) research(args []string) error {
	if len(args) == 0 {
		return torqueErrors.InvalidInput("usage: /research <problem> [finding...] | clear")
	}
	if args[0] == "clear" {
		r.c.shop.SetResearch(nil)
		return nil
	}
	r.c.shop.SetResearch(&shop.Research{Problem: args[0], Findings: args[1:]})
	return nil
}

func (r *REPL) printItems() {
	for _, it := range r.c.controller.Items() {
		text := it.Text
		if text == "" {
			text = it.Transcript
		}
		if it.Type == "function_call" {
			text = it.Name + "(" + it.Arguments + ")"
		}
		r.printf("%-24s %-9s %-20s %s\n", it.ID, it.Role, it.Type, oneLine(text, 80))
	}
}

func (r *REPL) printMemory() {
	mem := r.c.controller.Memory()
	keys := make([]string, 0, len(mem))
	for k := range mem {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		r.printf("%s = %s\n", k, mem[k])
	}
}

func (r *REPL) printStatus() {
	ctrl := r.c.controller
	snap := r.c.shop.Snapshot()
	r.printf("status:    %s\n", ctrl.Status())
	r.printf("recording: %t\n", ctrl.Recording())
	if snap.Customer != nil {
		r.printf("customer:  %s\n", snap.Customer.FullName())
	}
	if snap.Vehicle != nil {
		r.printf("vehicle:   %s\n", snap.Vehicle.Describe())
	}
	r.printf("items:     %d\n", len(ctrl.Items()))
}

func (r *REPL) printEvents(events <-chan conversation.Event) {
	for ev := range events {
		switch ev.Kind {
		case conversation.EventStatus:
			r.printf("\n[%s]\n", ev.Status)
		case conversation.EventItemUpdated:
			if ev.Item != nil && ev.Item.Status == conversation.ItemCompleted && ev.Item.Role == "assistant" {
				text := ev.Item.Transcript
				if text == "" {
					text = ev.Item.Text
				}
				if text != "" {
					r.printf("\nassistant: %s\n", text)
				}
			}
		case conversation.EventToolResult:
			r.printf("\n[tool %s: %s] %s\n", ev.Tool.Name, ev.Tool.Result.Status, ev.Tool.Result.Message)
		case conversation.EventInterrupted:
			r.printf("\n[interrupted %s at sample %d]\n", ev.Interruption.TrackID, ev.Interruption.Offset)
		case conversation.EventError:
			r.printf("\nerror: %s\n", torqueErrors.UserMessage(ev.Err))
		}
	}
}

func oneLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if max > 3 && len(s) > max {
		return s[:max-3] + "..."
	}
	return s
}

// spectrumBar renders magnitudes as a row of block characters, grouped into width
// columns.
func spectrumBar(bins []float64, width int) string {
	if len(bins) == 0 || width <= 0 {
		return ""
	}
	levels := []rune(" ▁▂▃▄▅▆▇█")
	group := (len(bins) + width - 1) / width
	var peak float64
	cols := make([]float64, 0, width)
	for i := 0; i < len(bins); i += group {
		end := min(i+group, len(bins))
		var sum float64
		for _, b := range bins[i:end] {
			sum += b
		}
		avg := sum / float64(end-i)
		cols = append(cols, avg)
		peak = max(peak, avg)
	}

	var b strings.Builder
	for _, v := range cols {
		idx := 0
		if peak > 0 {
			idx = int(v / peak * float64(len(levels)-1))
		}
		b.WriteRune(levels[idx])
	}
	return b.String()
}
