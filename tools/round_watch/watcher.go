package main

import (
	"fmt"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	tmjson "github.com/tendermint/tendermint/libs/json"
	"github.com/tendermint/tendermint/libs/log"
	rpctypes "github.com/tendermint/tendermint/rpc/jsonrpc/types"
	"net"
	"net/http"
	"net/url"
	"roundbft/rpc"
	"sync"
	"time"
)

const (
	sendTimeout = 10 * time.Second
	// see https://github.com/tendermint/tendermint/blob/master/rpc/jsonrpc/server/ws_handler.go
	pingPeriod = (30 * 9 / 10) * time.Second

	methodRoundState = "round_state"
)

// watcher 通过websocket轮询每个agent的round_state，打印轮次变化
type watcher struct {
	Targets  []string
	Interval time.Duration

	conns       []*websocket.Conn
	connsBroken []bool
	startingWg  sync.WaitGroup
	endingWg    sync.WaitGroup

	mtx     sync.Mutex
	last    map[string]*rpc.ResultRoundState
	stopped bool

	logger log.Logger
}

func newWatcher(targets []string, interval time.Duration) *watcher {
	return &watcher{
		Targets:     targets,
		Interval:    interval,
		conns:       make([]*websocket.Conn, len(targets)),
		connsBroken: make([]bool, len(targets)),
		last:        make(map[string]*rpc.ResultRoundState, len(targets)),
		logger:      log.NewNopLogger(),
	}
}

// SetLogger lets you set your own logger
func (w *watcher) SetLogger(l log.Logger) {
	w.logger = l
}

// Start 为每个target建立连接并启动读写协程
func (w *watcher) Start() error {
	w.stopped = false

	for i, target := range w.Targets {
		c, _, err := connect(target)
		if err != nil {
			return errors.Wrapf(err, "failed to connect %s", target)
		}
		w.conns[i] = c
	}

	w.startingWg.Add(len(w.conns))
	w.endingWg.Add(2 * len(w.conns))
	for i := range w.conns {
		go w.sendLoop(i)
		go w.receiveLoop(i)
	}

	w.startingWg.Wait()
	return nil
}

// Stop closes the connections.
func (w *watcher) Stop() {
	w.mtx.Lock()
	w.stopped = true
	w.mtx.Unlock()
	w.endingWg.Wait()
	for _, c := range w.conns {
		c.Close()
	}
}

func (w *watcher) isStopped() bool {
	w.mtx.Lock()
	defer w.mtx.Unlock()
	return w.stopped
}

func (w *watcher) receiveLoop(connIndex int) {
	c := w.conns[connIndex]
	target := w.Targets[connIndex]
	defer w.endingWg.Done()
	for {
		var resp rpctypes.RPCResponse
		if err := c.ReadJSON(&resp); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				w.logger.Error(fmt.Sprintf("failed to read response on conn %d", connIndex), "err", err)
			}
			return
		}
		if resp.Error != nil {
			w.logger.Error("round_state failed", "target", target, "err", resp.Error)
		} else if err := w.observe(target, resp.Result); err != nil {
			w.logger.Error("failed to decode round_state", "target", target, "err", err)
		}
		if w.isStopped() || w.connsBroken[connIndex] {
			return
		}
	}
}

// observe 记录最新状态，轮次或period变化时打印
func (w *watcher) observe(target string, raw []byte) error {
	rs := new(rpc.ResultRoundState)
	if err := tmjson.Unmarshal(raw, rs); err != nil {
		return err
	}

	w.mtx.Lock()
	prev := w.last[target]
	w.last[target] = rs
	w.mtx.Unlock()

	if prev != nil && prev.Round == rs.Round && prev.Period == rs.Period && prev.Step == rs.Step {
		return nil
	}
	w.logger.Info(formatTransition(prev, rs), "target", target, "contributors", rs.Contributors)
	return nil
}

func formatTransition(prev, rs *rpc.ResultRoundState) string {
	suffix := ""
	if rs.Terminal {
		suffix = " (terminal)"
	}
	if prev == nil {
		return fmt.Sprintf("%v@%v %s%s", rs.Round, rs.Period, rs.Step, suffix)
	}
	return fmt.Sprintf("%v@%v -[%v]-> %v@%v %s%s",
		prev.Round, prev.Period, rs.LastEvent, rs.Round, rs.Period, rs.Step, suffix)
}

func (w *watcher) sendLoop(connIndex int) {
	started := false
	// Close the starting waitgroup, in the event that this fails to start
	defer func() {
		if !started {
			w.startingWg.Done()
		}
	}()
	c := w.conns[connIndex]

	c.SetPingHandler(func(message string) error {
		err := c.WriteControl(websocket.PongMessage, []byte(message), time.Now().Add(sendTimeout))
		if err == websocket.ErrCloseSent {
			return nil
		} else if e, ok := err.(net.Error); ok && e.Temporary() {
			return nil
		}
		return err
	})

	logger := w.logger.With("addr", c.RemoteAddr())

	pingsTicker := time.NewTicker(pingPeriod)
	pollTicker := time.NewTicker(w.Interval)
	defer func() {
		pingsTicker.Stop()
		pollTicker.Stop()
		w.endingWg.Done()
	}()

	for {
		select {
		case <-pollTicker.C:
			if !started {
				w.startingWg.Done()
				started = true
			}

			c.SetWriteDeadline(time.Now().Add(sendTimeout))
			err := c.WriteJSON(rpctypes.RPCRequest{
				JSONRPC: "2.0",
				ID:      rpctypes.JSONRPCStringID("round-watch"),
				Method:  methodRoundState,
				Params:  []byte("{}"),
			})
			if err != nil {
				err = errors.Wrap(err,
					fmt.Sprintf("round_state request failed on connection #%d", connIndex))
				w.connsBroken[connIndex] = true
				logger.Error(err.Error())
				return
			}

		case <-pingsTicker.C:
			// go-rpc server closes the connection in the absence of pings
			c.SetWriteDeadline(time.Now().Add(sendTimeout))
			if err := c.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				err = errors.Wrap(err,
					fmt.Sprintf("failed to write ping message on conn #%d", connIndex))
				logger.Error(err.Error())
				w.connsBroken[connIndex] = true
			}
		}

		if w.isStopped() {
			// To cleanly close a connection, a client should send a close
			// frame and wait for the server to close the connection.
			c.SetWriteDeadline(time.Now().Add(sendTimeout))
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				err = errors.Wrap(err,
					fmt.Sprintf("failed to write close message on conn #%d", connIndex))
				logger.Error(err.Error())
				w.connsBroken[connIndex] = true
			}

			return
		}
	}
}

func connect(host string) (*websocket.Conn, *http.Response, error) {
	u := url.URL{Scheme: "ws", Host: host, Path: "/websocket"}
	return websocket.DefaultDialer.Dial(u.String(), nil)
}
