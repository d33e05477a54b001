package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"snake-dqn/agent"
	"snake-dqn/config"
	"snake-dqn/game"
	"snake-dqn/training"

	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	"golang.org/x/sync/errgroup"
)

// Event names exchanged over the websocket.
const (
	EventStartGame   = "start_game"
	EventChangeDelay = "change_delay"
	EventUpdate      = "update"
	EventError       = "error"
)

// Message is the envelope of every websocket frame.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type StartGame struct {
	GridWidth    int     `json:"grid_width"`
	GridHeight   int     `json:"grid_height"`
	StartingTick float64 `json:"starting_tick"`
}

type ChangeDelay struct {
	Delay float64 `json:"delay"`
}

type errorData struct {
	Message string `json:"message"`
}

var (
	ErrPongDeadlineExceeded = errors.New("client disconnect, pong deadline exceeded")
	errNoGame               = errors.New("no game started")
)

// session is one websocket client and the game it watches. Each
// start_game replaces the previous game with a fresh Game and SnakeAgent.
type session struct {
	id        string
	connected time.Time
	sock      *websock
	cfg       config.Config
	seed      func() uint64
	ping      time.Duration

	mu      sync.Mutex
	manager *training.Manager
	stopRun context.CancelFunc
	started chan *training.Manager

	lastPong atomic.Int64
}

// SessionSummary is the /sessions view of a session.
type SessionSummary struct {
	ID        string            `json:"id"`
	Connected time.Time         `json:"connected"`
	Game      *training.Summary `json:"game,omitempty"`
}

func (s *session) summary() SessionSummary {
	s.mu.Lock()
	m := s.manager
	s.mu.Unlock()

	sum := SessionSummary{ID: s.id, Connected: s.connected}
	if m != nil {
		gs := m.Summary()
		sum.Game = &gs
	}
	return sum
}

// Sync serves the client until it disconnects or ctx is done. It returns
// nil on a normal disconnect.
func (s *session) Sync(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return s.readMessages(groupCtx, group)
	})
	group.Go(func() error {
		return s.pingPong(groupCtx)
	})
	group.Go(func() error {
		return s.publish(groupCtx)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		s.sock.Close()
		return nil
	})

	err := group.Wait()
	if isClosure(err) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// pingPong checks the client is alive. The pong handler runs inside readMessages.
func (s *session) pingPong(ctx context.Context) error {
	pongWait := 4 * s.ping
	s.lastPong.Store(time.Now().UnixNano())
	s.sock.Conn().SetPongHandler(func(string) error {
		s.lastPong.Store(time.Now().UnixNano())
		return nil
	})

	pinger := channerics.NewTicker(ctx.Done(), s.ping)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pinger:
			if time.Since(time.Unix(0, s.lastPong.Load())) > pongWait {
				return ErrPongDeadlineExceeded
			}
			err := s.sock.Write(ctx, func(ws *websocket.Conn) error {
				return ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			})
			if err != nil {
				return fmt.Errorf("ping failed: %w", err)
			}
		}
	}
}

// readMessages dispatches client events. Errors returned by websocket Read
// methods are permanent, so any of them tears the session down.
func (s *session) readMessages(ctx context.Context, group *errgroup.Group) error {
	for {
		var raw []byte
		err := s.sock.Read(ctx, func(ws *websocket.Conn) (readErr error) {
			_, raw, readErr = ws.ReadMessage()
			return
		})
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}

		var msg Message
		err = json.Unmarshal(raw, &msg)
		if err == nil {
			err = s.handle(ctx, group, msg)
		}
		if err != nil {
			log.Printf("session %s: %s: %v", s.id, msg.Event, err)
			if err := s.send(ctx, EventError, errorData{Message: err.Error()}); err != nil {
				return err
			}
		}
	}
}

func (s *session) handle(ctx context.Context, group *errgroup.Group, msg Message) error {
	switch msg.Event {
	case EventStartGame:
		var req StartGame
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return fmt.Errorf("bad start_game payload: %w", err)
		}
		return s.startGame(ctx, group, req)
	case EventChangeDelay:
		var req ChangeDelay
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return fmt.Errorf("bad change_delay payload: %w", err)
		}
		if req.Delay < 0 {
			return fmt.Errorf("negative delay %v", req.Delay)
		}
		s.mu.Lock()
		m := s.manager
		s.mu.Unlock()
		if m == nil {
			return errNoGame
		}
		m.SetDelay(time.Duration(req.Delay * float64(time.Second)))
		return nil
	}
	return fmt.Errorf("unknown event %q", msg.Event)
}

// startGame stops any running game and starts a new one owned by this session.
func (s *session) startGame(ctx context.Context, group *errgroup.Group, req StartGame) error {
	if err := s.cfg.Game.CheckGrid(req.GridWidth, req.GridHeight); err != nil {
		return err
	}
	if req.StartingTick < 0 {
		return fmt.Errorf("negative tick %v", req.StartingTick)
	}

	seed := s.seed()
	g := game.NewGame(req.GridWidth, req.GridHeight, seed)
	g.Tick = time.Duration(req.StartingTick * float64(time.Second))
	a, err := agent.New(s.cfg.Agent, agent.DeriveSeed(seed))
	if err != nil {
		return err
	}
	m := training.NewManager(g, a, nil, config.Training{})

	runCtx, stop := context.WithCancel(ctx)
	s.mu.Lock()
	if s.stopRun != nil {
		s.stopRun()
	}
	s.manager, s.stopRun = m, stop
	s.mu.Unlock()

	select {
	case s.started <- m:
	case <-ctx.Done():
		stop()
		return ctx.Err()
	}
	group.Go(func() error {
		return m.Run(runCtx)
	})
	log.Printf("session %s: started game %s (%dx%d, tick %v)", s.id, g.UUID, req.GridWidth, req.GridHeight, g.Tick)
	return nil
}

// publish forwards the snapshots of the current game to the client.
func (s *session) publish(ctx context.Context) error {
	var updates <-chan game.Snapshot
	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-s.started:
			updates = m.Snapshots()
		case snap := <-updates:
			if err := s.send(ctx, EventUpdate, snap); err != nil {
				return err
			}
		}
	}
}

func (s *session) send(ctx context.Context, event string, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return s.sock.Write(ctx, func(ws *websocket.Conn) error {
		return ws.WriteJSON(Message{Event: event, Data: raw})
	})
}
