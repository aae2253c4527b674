package main

import (
	"context"
	"net/http"
	"time"

	"comichub/internal/domain/ads"
	"comichub/internal/rotation"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
	streamReadLimit  = 512
	streamBuffer     = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// streamFrame is pushed to the client whenever the slot changes.
type streamFrame struct {
	Type    string        `json:"type"` // display, idle or error
	Index   int           `json:"index"`
	Total   int           `json:"total"`
	Ad      *ads.PublicAd `json:"ad,omitempty"`
	Message string        `json:"message,omitempty"`
}

// streamCommand is sent by the client. Only "jump" is understood.
type streamCommand struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
}

// rotationSession pairs one websocket with one rotator.
type rotationSession struct {
	app      *application
	position ads.Position
	conn     *websocket.Conn
	rotator  *rotation.Rotator
	frames   chan streamFrame
}

// enqueue never blocks; a client that falls behind misses frames.
func (s *rotationSession) enqueue(f streamFrame) {
	select {
	case s.frames <- f:
	default:
		s.app.logger.Warnw("dropping rotation frame, client is slow", "position", s.position, "type", f.Type)
	}
}

func (s *rotationSession) display(index int, ad ads.Ad) {
	pub := ad.Public()
	s.enqueue(streamFrame{Type: "display", Index: index, Total: s.rotator.Len(), Ad: &pub})

	go func(id int64) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.app.recorder.View(ctx, id); err != nil {
			s.app.logger.Warnw("view not recorded for streamed ad", "ad_id", id, "error", err)
		}
	}(ad.ID)
}

func (s *rotationSession) load(list []ads.Ad) {
	s.rotator.SetAds(list)
	if len(list) == 0 {
		s.enqueue(streamFrame{Type: "idle"})
	}
}

func (s *rotationSession) readCommands(done chan<- struct{}) {
	defer close(done)

	s.conn.SetReadLimit(streamReadLimit)
	s.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	for {
		var cmd streamCommand
		if err := s.conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.app.logger.Warnw("rotation stream read failed", "position", s.position, "error", err)
			}
			return
		}

		switch cmd.Type {
		case "jump":
			if err := s.rotator.Jump(cmd.Index); err != nil {
				s.enqueue(streamFrame{Type: "error", Index: cmd.Index, Total: s.rotator.Len(), Message: err.Error()})
			}
		default:
			s.enqueue(streamFrame{Type: "error", Message: "unknown command " + cmd.Type})
		}
	}
}

func (s *rotationSession) write(f streamFrame) error {
	s.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return s.conn.WriteJSON(f)
}

// StreamAds godoc
//
//	@Summary		Stream the rotation of a slot
//	@Description	Upgrades to a websocket that pushes the ad on screen every rotation interval. Send {"type":"jump","index":n} to jump to an ad
//	@Tags			Ads
//	@Param			position	path	string	true	"Slot: top, sidebar or bottom"
//	@Success		101
//	@Failure		400	{object}	error	"Unknown position"
//	@Failure		503	{object}	error	"Ad store unavailable"
//	@Router			/ads/position/{position}/stream [get]
func (app *application) streamAdsHandler(w http.ResponseWriter, r *http.Request) {
	position, err := ads.ParsePosition(chi.URLParam(r, "position"))
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	initial, err := app.selector.SelectForPosition(ctx, position, app.now())
	cancel()
	if err != nil {
		app.metrics.SelectionErrors.WithLabelValues(string(position)).Inc()
		app.storeErrorResponse(w, r, err)
		return
	}
	app.metrics.Selections.WithLabelValues(string(position)).Inc()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		app.logger.Warnw("websocket upgrade failed", "position", position, "error", err)
		return
	}
	defer conn.Close()

	app.metrics.ActiveStreams.Inc()
	defer app.metrics.ActiveStreams.Dec()

	s := &rotationSession{
		app:      app,
		position: position,
		conn:     conn,
		frames:   make(chan streamFrame, streamBuffer),
	}
	s.rotator = rotation.New(app.config.rotation.interval, rotation.OnDisplay(s.display))
	defer s.rotator.Stop()

	s.load(initial)

	readDone := make(chan struct{})
	go s.readCommands(readDone)

	refreshEvery := app.config.rotation.refresh
	if refreshEvery <= 0 {
		refreshEvery = 30 * time.Second
	}
	refresh := time.NewTicker(refreshEvery)
	defer refresh.Stop()
	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	for {
		select {
		case f := <-s.frames:
			if err := s.write(f); err != nil {
				app.logger.Warnw("rotation stream write failed", "position", position, "error", err)
				return
			}
		case <-refresh.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			list, err := app.selector.SelectForPosition(ctx, position, app.now())
			cancel()
			if err != nil {
				// Keep rotating the last known list until the store is back.
				app.metrics.SelectionErrors.WithLabelValues(string(position)).Inc()
				app.logger.Warnw("rotation refresh failed", "position", position, "error", err)
				continue
			}
			wasEmpty := s.rotator.Len() == 0
			if len(list) == 0 && wasEmpty {
				continue
			}
			s.load(list)
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		case <-readDone:
			return
		case <-app.stop:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(streamWriteWait))
			return
		}
	}
}
