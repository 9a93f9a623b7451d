// Package ws ingests the camera sensor streams over a websocket connection
// and feeds them to the snapshot synchronizer.
package ws

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/robobench/graspd/internal/clients/wire"
	"github.com/robobench/graspd/internal/domain/frames"
	"github.com/robobench/graspd/internal/domain/snapshot"
	"github.com/robobench/graspd/internal/infrastructure/config"
	"github.com/robobench/graspd/internal/infrastructure/logging"
	"github.com/robobench/graspd/internal/infrastructure/monitoring"
	"github.com/robobench/graspd/internal/shared/cloud"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1 << 20,
	WriteBufferSize: 4 << 10,
	CheckOrigin: func(r *http.Request) bool {
		// Sensor bridges connect from the robot's local network.
		return true
	},
}

// sensorMsg is one stream message. Stream selects which payload fields are
// meaningful.
type sensorMsg struct {
	Stream string  `json:"stream"`
	Frame  string  `json:"frame"`
	Stamp  float64 `json:"stamp"`

	// intrinsics payload
	Width  int     `json:"width,omitempty"`
	Height int     `json:"height,omitempty"`
	Fx     float64 `json:"fx,omitempty"`
	Fy     float64 `json:"fy,omitempty"`
	Cx     float64 `json:"cx,omitempty"`
	Cy     float64 `json:"cy,omitempty"`

	// image payload
	Encoding string `json:"encoding,omitempty"`
	Data     []byte `json:"data,omitempty"`

	// cloud payload; Source identifies the publishing node so identical
	// foreground/background sources can be collapsed.
	Source string       `json:"source,omitempty"`
	Points [][4]float64 `json:"points,omitempty"`
}

// Handler accepts sensor stream connections.
type Handler struct {
	snaps    *snapshot.Synchronizer
	resolver *frames.Resolver
	profile  *config.Profile
	metrics  *monitoring.Metrics
	log      *logging.Logger
}

// NewHandler creates a sensor ingestion handler. metrics may be nil.
func NewHandler(snaps *snapshot.Synchronizer, resolver *frames.Resolver, profile *config.Profile, metrics *monitoring.Metrics, log *logging.Logger) *Handler {
	if profile == nil {
		profile = config.DefaultProfile()
	}
	return &Handler{snaps: snaps, resolver: resolver, profile: profile, metrics: metrics, log: log}
}

// HandleConnection upgrades the request and consumes stream messages until
// the peer disconnects.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	h.log.Info("sensor stream connected", zap.String("remote", conn.RemoteAddr().String()))

	for {
		var msg sensorMsg
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Warn("sensor stream read error", zap.Error(err))
			}
			return
		}
		h.dispatch(c, msg)
	}
}

// dispatch routes one message to the synchronizer and, when it completes a
// snapshot, refreshes the frame pair for the new capture.
func (h *Handler) dispatch(c *gin.Context, msg sensorMsg) {
	if h.metrics != nil {
		h.metrics.StreamMessages.WithLabelValues(msg.Stream).Inc()
	}

	stamp := wire.Time(msg.Stamp)
	var snap *snapshot.Snapshot

	streams := h.profile.Streams
	switch msg.Stream {
	case streams.Intrinsics:
		snap = h.snaps.OfferIntrinsics(snapshot.Intrinsics{
			Frame: msg.Frame,
			Stamp: stamp,
			Width: msg.Width, Height: msg.Height,
			Fx: msg.Fx, Fy: msg.Fy, Cx: msg.Cx, Cy: msg.Cy,
		})
	case streams.Color:
		snap = h.snaps.OfferColor(snapshot.Image{
			Frame: msg.Frame, Stamp: stamp,
			Width: msg.Width, Height: msg.Height,
			Encoding: msg.Encoding, Data: msg.Data,
		})
	case streams.Depth:
		snap = h.snaps.OfferDepth(snapshot.Image{
			Frame: msg.Frame, Stamp: stamp,
			Width: msg.Width, Height: msg.Height,
			Encoding: msg.Encoding, Data: msg.Data,
		})
	case streams.Foreground, streams.Background:
		cl := cloud.Extract(msg.Points, msg.Frame, stamp)
		source := msg.Source
		if source == "" {
			source = msg.Stream
		}
		// A single topic can serve both roles when no segmentation node is
		// running; offer it to each role it is configured for.
		if msg.Stream == streams.Foreground {
			snap = h.snaps.OfferForeground(cl, source)
		}
		if msg.Stream == streams.Background {
			if s := h.snaps.OfferBackground(cl, source); s != nil {
				snap = s
			}
		}
	default:
		h.log.Warn("message for unconfigured stream", zap.String("stream", msg.Stream))
		return
	}

	if snap != nil {
		if h.metrics != nil {
			h.metrics.SnapshotsMatched.Inc()
			h.metrics.SnapshotSkew.Observe(snap.Skew.Seconds())
		}
		h.resolver.Refresh(c.Request.Context(), snap.Intrinsics.Frame)
	}
}
