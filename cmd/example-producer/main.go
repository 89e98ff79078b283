// Command example-producer opens a topic against a running broker and plays
// back a short, scripted span tree with data events. It emits no
// follows-from edges.
// It exists to exercise the wire schema end to end against a live broker;
// it is not itself part of the tracing pipeline.
//
// Grounded on original_source/example_app/src/main.rs's demo session: a
// "main" span containing a "spawn" span, which kicks off two concurrent
// "task" spans each entering a nested "my_span" and emitting a couple of
// data events.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/rerun-io/tracepipe/internal/transport"
	"github.com/rerun-io/tracepipe/internal/wire"
)

func main() {
	addr := flag.String("addr", "ws://127.0.0.1:9002/ws", "broker websocket address")
	topicName := flag.String("topic", "example-producer session", "human-readable topic name")
	flag.Parse()

	logger := slog.Default().With("component", "example-producer")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sender, receiver, err := transport.Connect(ctx, *addr, nil)
	if err != nil {
		logger.Error("failed to connect to broker", "addr", *addr, "error", err)
		os.Exit(1)
	}
	defer sender.Close()

	if !waitForOpen(receiver, 5*time.Second) {
		logger.Error("broker connection never opened")
		os.Exit(1)
	}

	p := &producer{sender: sender, topicID: wire.NewTopicId(), seq: 0, logger: logger}
	p.openTopic(*topicName)

	mainCallsite := p.announceSpanCallsite("example_producer", "main", 12)
	spawnCallsite := p.announceSpanCallsite("example_producer", "spawn", 20)
	taskCallsite := p.announceSpanCallsite("example_producer", "task", 22)
	mySpanCallsite := p.announceSpanCallsite("example_producer", "my_span", 45)
	helloCallsite := p.announceEventCallsite("example_producer", "event", 48, []string{"message"})
	valueCallsite := p.announceEventCallsite("example_producer", "event", 49, []string{"message", "value"})

	mainSpan := p.newSpan(mainCallsite, false, 0)
	p.enter(mainSpan)

	spawnSpan := p.newSpan(spawnCallsite, true, mainSpan)
	p.enter(spawnSpan)

	var taskSpans []wire.SpanId
	for i := 0; i < 2; i++ {
		taskFields := wire.NewFieldBuilder().I64("task_nr", int64(i)).Build()
		taskSpan := p.newSpanWithFields(taskCallsite, true, spawnSpan, taskFields)
		taskSpans = append(taskSpans, taskSpan)
	}
	p.exit(spawnSpan)
	p.destroy(spawnSpan)

	time.Sleep(10 * time.Millisecond)

	for _, taskSpan := range taskSpans {
		p.enter(taskSpan)
		p.runMyFunction(taskSpan, mySpanCallsite, helloCallsite, valueCallsite)
		p.exit(taskSpan)
		p.destroy(taskSpan)
	}

	p.exit(mainSpan)
	p.destroy(mainSpan)

	logger.Info("demo session sent", "topic", p.topicID.String())

	time.Sleep(100 * time.Millisecond) // give the write pump time to flush
}

// runMyFunction mirrors original_source/example_app/src/main.rs's
// my_function: a span entered twice, with two data events emitted the first
// time through and one the second time.
func (p *producer) runMyFunction(parent wire.SpanId, spanCallsite, helloCallsite, valueCallsite wire.CallsiteId) {
	mySpan := p.newSpan(spanCallsite, true, parent)

	p.enter(mySpan)
	p.event(helloCallsite, true, mySpan, wire.NewFieldBuilder().Str("message", "Hello from my_function").Build())
	p.event(valueCallsite, true, mySpan, wire.NewFieldBuilder().
		Str("message", "This is an event").
		I64("value", 42).
		Build())
	time.Sleep(5 * time.Millisecond)
	p.exit(mySpan)

	p.enter(mySpan)
	p.event(helloCallsite, true, mySpan, wire.NewFieldBuilder().Str("message", "Second time in same span").Build())
	time.Sleep(5 * time.Millisecond)
	p.exit(mySpan)

	p.destroy(mySpan)
}

// producer accumulates the small amount of session state an example
// producer needs: where to send frames, which topic it owns, and a
// sequence counter feeding span id generation.
type producer struct {
	sender  transport.Sender
	topicID wire.TopicId
	seq     uint64
	logger  *slog.Logger
}

func (p *producer) send(msg wire.Message) {
	payload := wire.EncodeMessage(msg)
	frame := wire.EncodePubSubMsg(wire.TopicMsgMsg(p.topicID, payload))
	p.sender.Send(transport.Binary(frame))
}

func (p *producer) openTopic(name string) {
	meta := wire.TopicMeta{Id: p.topicID, Created: wire.Now(), Name: name}
	frame := wire.EncodePubSubMsg(wire.NewTopicMsg(meta))
	p.sender.Send(transport.Binary(frame))
}

func (p *producer) announceSpanCallsite(module, name string, line uint32) wire.CallsiteId {
	id := wire.HashCallsiteId(module, name, line)
	p.send(wire.Message{
		LogTime: wire.Now(),
		Kind:    wire.MsgNewCallsite,
		NewCallsite: wire.Callsite{
			Id:       id,
			Kind:     wire.CallsiteSpan,
			Name:     name,
			Level:    wire.LevelInfo,
			Location: wire.Location{Module: module, File: module + ".go", Line: line, HasLine: true},
		},
	})
	return id
}

func (p *producer) announceEventCallsite(module, name string, line uint32, fieldNames []string) wire.CallsiteId {
	id := wire.HashCallsiteId(module, name+"#event", line)
	p.send(wire.Message{
		LogTime: wire.Now(),
		Kind:    wire.MsgNewCallsite,
		NewCallsite: wire.Callsite{
			Id:         id,
			Kind:       wire.CallsiteEvent,
			Name:       name,
			Level:      wire.LevelInfo,
			Location:   wire.Location{Module: module, File: module + ".go", Line: line, HasLine: true},
			FieldNames: fieldNames,
		},
	})
	return id
}

func (p *producer) newSpan(callsite wire.CallsiteId, hasParent bool, parent wire.SpanId) wire.SpanId {
	return p.newSpanWithFields(callsite, hasParent, parent, nil)
}

func (p *producer) newSpanWithFields(callsite wire.CallsiteId, hasParent bool, parent wire.SpanId, fields wire.FieldSet) wire.SpanId {
	p.seq++
	id := wire.HashSpanId(callsite, p.seq)
	p.send(wire.Message{
		LogTime: wire.Now(),
		Kind:    wire.MsgNewSpan,
		NewSpan: wire.Span{
			Id:           id,
			HasParent:    hasParent,
			ParentSpanId: parent,
			CallsiteId:   callsite,
			Fields:       fields,
		},
	})
	return id
}

func (p *producer) enter(id wire.SpanId) {
	p.send(wire.Message{LogTime: wire.Now(), Kind: wire.MsgEnterSpan, SpanId: id})
}

func (p *producer) exit(id wire.SpanId) {
	p.send(wire.Message{LogTime: wire.Now(), Kind: wire.MsgExitSpan, SpanId: id})
}

func (p *producer) destroy(id wire.SpanId) {
	p.send(wire.Message{LogTime: wire.Now(), Kind: wire.MsgDestroySpan, SpanId: id})
}

func (p *producer) event(callsite wire.CallsiteId, hasParent bool, parent wire.SpanId, fields wire.FieldSet) {
	p.send(wire.Message{
		LogTime: wire.Now(),
		Kind:    wire.MsgDataEvent,
		DataEvent: wire.DataEvent{
			CallsiteId:   callsite,
			HasParent:    hasParent,
			ParentSpanId: parent,
			Fields:       fields,
		},
	})
}

// waitForOpen polls the receiver until EventOpened arrives or timeout
// elapses, since transport.Receiver.TryRecv is intentionally non-blocking.
func waitForOpen(receiver transport.Receiver, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if ev, ok := receiver.TryRecv(); ok {
			switch ev.Kind {
			case transport.EventOpened:
				return true
			case transport.EventError, transport.EventClosed:
				return false
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}
