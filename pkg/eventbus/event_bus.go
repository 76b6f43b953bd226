package eventbus

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/sirupsen/logrus"
)

// EventBus dispatches events to subscribers whose handler signature matches
// the published arguments.
type EventBus interface {
	Publish(args ...any)
	PublishE(args ...any) error
	// Subscribe registers handler and returns a func that removes it.
	Subscribe(handler any) func()
	Clear()
	SubscribersCount() int
}

var (
	ErrNoSubscribers        = errors.New("eventbus: no matching subscribers")
	ErrInvalidHandlerReturn = errors.New("eventbus: invalid handler return signature")
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

type subscriber struct {
	id      uint64
	handler reflect.Value
}

type publisherImpl struct {
	log         *logrus.Logger
	mu          sync.RWMutex
	nextID      uint64
	subscribers []subscriber
}

func NewEventPublisher(log *logrus.Logger) EventBus {
	return &publisherImpl{log: log}
}

func MatchSignature(handler any, args []any) bool {
	t := reflect.TypeOf(handler)
	if t == nil || t.Kind() != reflect.Func {
		return false
	}
	if t.NumIn() != len(args) {
		return false
	}

	for i, arg := range args {
		paramType := t.In(i)
		if arg == nil {
			if paramType.Kind() != reflect.Interface && paramType.Kind() != reflect.Ptr {
				return false
			}
			continue
		}
		argType := reflect.TypeOf(arg)
		if paramType.Kind() == reflect.Interface {
			if !argType.Implements(paramType) {
				return false
			}
			continue
		}
		if !argType.AssignableTo(paramType) {
			return false
		}
	}
	return true
}

func (p *publisherImpl) snapshot() []subscriber {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]subscriber, len(p.subscribers))
	copy(out, p.subscribers)
	return out
}

func callArgs(handler reflect.Value, args []any) []reflect.Value {
	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		if arg == nil {
			in[i] = reflect.Zero(handler.Type().In(i))
			continue
		}
		in[i] = reflect.ValueOf(arg)
	}
	return in
}

func (p *publisherImpl) Publish(args ...any) {
	handled := false
	for _, s := range p.snapshot() {
		if !MatchSignature(s.handler.Interface(), args) {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil && p.log != nil {
					p.log.Errorf("eventbus: handler %s panicked with args %v: %v", s.handler.Type(), args, r)
				}
			}()
			s.handler.Call(callArgs(s.handler, args))
			handled = true
		}()
	}

	if !handled && p.log != nil {
		p.log.Debugf("eventbus.Publish: no matching subscribers for event with args: %v", args)
	}
}

func (p *publisherImpl) PublishE(args ...any) error {
	handled := false
	var errs []error

	for _, s := range p.snapshot() {
		if !MatchSignature(s.handler.Interface(), args) {
			continue
		}
		handled = true

		func() {
			defer func() {
				if r := recover(); r != nil {
					errs = append(errs, fmt.Errorf("eventbus: handler %s panicked: %v", s.handler.Type(), r))
				}
			}()

			out := s.handler.Call(callArgs(s.handler, args))
			switch {
			case len(out) == 0:
			case len(out) != 1:
				errs = append(errs, fmt.Errorf("%w: handler %s returned %d values", ErrInvalidHandlerReturn, s.handler.Type(), len(out)))
			case out[0].Type() != errorType:
				errs = append(errs, fmt.Errorf("%w: handler %s return type is %s", ErrInvalidHandlerReturn, s.handler.Type(), out[0].Type()))
			case !out[0].IsNil():
				errs = append(errs, out[0].Interface().(error))
			}
		}()
	}

	if !handled {
		return ErrNoSubscribers
	}
	return errors.Join(errs...)
}

func (p *publisherImpl) Subscribe(handler any) func() {
	v := reflect.ValueOf(handler)
	if v.Kind() != reflect.Func {
		panic("handler must be a function")
	}

	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.subscribers = append(p.subscribers, subscriber{id: id, handler: v})
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { p.remove(id) })
	}
}

func (p *publisherImpl) remove(id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, s := range p.subscribers {
		if s.id == id {
			p.subscribers = append(p.subscribers[:i], p.subscribers[i+1:]...)
			return
		}
	}
}

func (p *publisherImpl) Clear() {
	p.mu.Lock()
	p.subscribers = nil
	p.mu.Unlock()
}

func (p *publisherImpl) SubscribersCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subscribers)
}
