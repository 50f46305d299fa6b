package vertex

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/filswan/go-mcs-sdk/mcs/api/common/logs"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/silent-stones/vertex-universal-orchestrator/constants"
)

const PingMsg = "ping"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// statusStream pushes one experiment's status map to a websocket client after
// every refresh tick, with a ping keep-alive, until every job settles or the
// client goes away.
type statusStream struct {
	client    *websocket.Conn
	message   chan wsMessage
	stopCh    chan struct{}
	closeOnce sync.Once
}

type wsMessage struct {
	data    []byte
	msgType int
}

func newStatusStream(client *websocket.Conn) *statusStream {
	stream := &statusStream{
		client:  client,
		message: make(chan wsMessage, 5),
		stopCh:  make(chan struct{}),
	}

	client.SetCloseHandler(func(code int, text string) error {
		logs.GetLogger().Infof("status stream client sent close event, code: %d", code)
		stream.Close()
		return nil
	})

	return stream
}

func (s *statusStream) Close() {
	s.closeOnce.Do(func() {
		defer func() {
			if s.client != nil {
				s.client.Close()
			}
		}()
		close(s.stopCh)
	})
}

func (s *statusStream) run(orchestrator *Orchestrator) {
	go s.writeMessages()

	go func() {
		ticker := time.NewTicker(3 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.message <- wsMessage{
					data:    []byte(PingMsg),
					msgType: websocket.TextMessage,
				}
			case <-s.stopCh:
				return
			}
		}
	}()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			statuses := orchestrator.JobStatuses()
			data, err := json.Marshal(statuses)
			if err != nil {
				logs.GetLogger().Errorf("Failed marshal status update, error: %+v", err)
				continue
			}
			s.message <- wsMessage{
				data:    data,
				msgType: websocket.TextMessage,
			}

			if allSettled(statuses) {
				s.Close()
				return
			}
		case <-s.stopCh:
			return
		}
	}
}

func (s *statusStream) writeMessages() {
	for {
		select {
		case msg := <-s.message:
			if err := s.client.WriteMessage(msg.msgType, msg.data); err != nil {
				logs.GetLogger().Errorf("Failed write status message, error: %+v", err)
				return
			}
		case <-s.stopCh:
			return
		}
	}
}

func allSettled(statuses map[string]string) bool {
	if len(statuses) == 0 {
		return false
	}
	for _, status := range statuses {
		if !constants.IsSettledStatus(status) {
			return false
		}
	}
	return true
}

// StreamExperimentStatus upgrades the connection and streams status updates
// for one experiment.
func StreamExperimentStatus(c *gin.Context) {
	experimentName := c.Param("name")
	value, ok := runningExperiments.Load(experimentName)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "experiment not found"})
		return
	}
	orchestrator := value.(*Orchestrator)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logs.GetLogger().Errorf("Failed upgrade websocket, error: %+v", err)
		return
	}

	stream := newStatusStream(conn)
	go stream.run(orchestrator)
}
