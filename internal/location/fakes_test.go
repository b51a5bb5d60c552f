// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package location

import (
	"bytes"
	"errors"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// doneToken is an mqtt.Token that has already completed.
type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }

func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// fakeClient implements the parts of mqtt.Client the gate uses. Calling
// anything else panics on the nil embedded interface.
type fakeClient struct {
	mqtt.Client

	mu         sync.Mutex
	connected  bool
	connectErr error
	publishErr map[string]error
	messages   []published
}

func newFakeClient() *fakeClient {
	return &fakeClient{publishErr: map[string]error{}}
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) Connect() mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connectErr != nil {
		return doneToken{err: c.connectErr}
	}
	c.connected = true
	return doneToken{}
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.publishErr[topic]; err != nil {
		return doneToken{err: err}
	}
	c.messages = append(c.messages, published{
		topic:    topic,
		qos:      qos,
		retained: retained,
		payload:  bytes.Clone(payload.([]byte)),
	})
	return doneToken{}
}

func (c *fakeClient) on(topic string) []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []published
	for _, m := range c.messages {
		if m.topic == topic {
			out = append(out, m)
		}
	}
	return out
}

// fakePort records writes and fails after Close.
type fakePort struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

var errPortClosed = errors.New("port closed")

func (p *fakePort) Read([]byte) (int, error) { return 0, errPortClosed }

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, errPortClosed
	}
	return p.buf.Write(b)
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePort) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.String()
}
