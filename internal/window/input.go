package window

import (
	"github.com/veandco/go-sdl2/sdl"
)

// EventType classifies an input event.
type EventType int

const (
	EventNone EventType = iota
	EventQuit
	EventWindowResize
	EventKeyDown
	EventKeyUp
	EventMouseDrag
	EventMouseWheel
)

// Event is a processed input event.
type Event struct {
	Type   EventType
	Key    sdl.Keycode
	Width  int
	Height int
	DX, DY float32
}

// Input collects the events of one frame.
type Input struct {
	events []Event
	held   map[sdl.Keycode]bool
}

// NewInput creates an input handler.
func NewInput() *Input {
	return &Input{
		events: make([]Event, 0, 16),
		held:   make(map[sdl.Keycode]bool),
	}
}

// Update polls SDL events. It returns true when the window should close.
func (i *Input) Update() bool {
	i.events = i.events[:0]

	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch e := event.(type) {
		case *sdl.QuitEvent:
			i.events = append(i.events, Event{Type: EventQuit})
			return true

		case *sdl.WindowEvent:
			if e.Event == sdl.WINDOWEVENT_RESIZED {
				i.events = append(i.events, Event{
					Type:   EventWindowResize,
					Width:  int(e.Data1),
					Height: int(e.Data2),
				})
			}

		case *sdl.KeyboardEvent:
			key := e.Keysym.Sym
			switch e.Type {
			case sdl.KEYDOWN:
				if e.Repeat == 0 {
					i.events = append(i.events, Event{Type: EventKeyDown, Key: key})
				}
				i.held[key] = true
			case sdl.KEYUP:
				i.events = append(i.events, Event{Type: EventKeyUp, Key: key})
				delete(i.held, key)
			}

		case *sdl.MouseMotionEvent:
			if e.State&sdl.ButtonLMask() != 0 {
				i.events = append(i.events, Event{
					Type: EventMouseDrag,
					DX:   float32(e.XRel),
					DY:   float32(e.YRel),
				})
			}

		case *sdl.MouseWheelEvent:
			i.events = append(i.events, Event{Type: EventMouseWheel, DY: float32(e.Y)})
		}
	}

	return false
}

// Events returns the events from the last Update.
func (i *Input) Events() []Event {
	return i.events
}

// KeyPressed reports whether key went down this frame.
func (i *Input) KeyPressed(key sdl.Keycode) bool {
	for _, e := range i.events {
		if e.Type == EventKeyDown && e.Key == key {
			return true
		}
	}
	return false
}

// KeyHeld reports whether key is currently down.
func (i *Input) KeyHeld(key sdl.Keycode) bool {
	return i.held[key]
}
