package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
	"github.com/wfunc/figurine-hub/internal/metrics"
	"github.com/wfunc/figurine-hub/internal/middleware"
	"github.com/wfunc/figurine-hub/internal/service"
	"go.uber.org/zap"
)

// HubTestSuite WebSocket推送测试套件
type HubTestSuite struct {
	suite.Suite
	hub     *Hub
	metrics *metrics.Metrics
	server  *httptest.Server
	cancel  context.CancelFunc
}

func (suite *HubTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	suite.metrics = metrics.New()
	suite.hub = NewHub(suite.metrics, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	suite.cancel = cancel
	go suite.hub.Run(ctx)

	handler := NewHandler(suite.hub, nil, zap.NewNop())
	r := gin.New()
	// 测试中用查询参数代替认证中间件
	r.GET("/ws", func(c *gin.Context) {
		if uid := c.Query("uid"); uid != "" {
			c.Set(middleware.ContextUserID, uid)
		}
		c.Next()
	}, handler.Serve)
	suite.server = httptest.NewServer(r)
}

func (suite *HubTestSuite) TearDownTest() {
	suite.cancel()
	suite.server.Close()
}

func (suite *HubTestSuite) dial(userID string) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(suite.server.URL, "http") + "/ws?uid=" + userID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	suite.Require().NoError(err)

	msg := suite.read(conn)
	suite.Require().Equal(MessageTypeConnected, msg.Type)
	return conn
}

func (suite *HubTestSuite) read(conn *websocket.Conn) *Message {
	suite.Require().NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, data, err := conn.ReadMessage()
	suite.Require().NoError(err)
	var msg Message
	suite.Require().NoError(json.Unmarshal(data, &msg))
	return &msg
}

// TestPublishBindingEvent 测试事件只推送给所属用户
func (suite *HubTestSuite) TestPublishBindingEvent() {
	alice := suite.dial("alice")
	defer alice.Close()
	bob := suite.dial("bob")
	defer bob.Close()

	suite.Equal(2, suite.hub.GetOnlineCount())
	suite.True(suite.hub.IsOnline("alice"))

	characterID := "char-1"
	suite.hub.PublishBindingEvent(&service.BindingEvent{
		Type:        service.EventCharacterLinked,
		UserID:      "alice",
		FigurineID:  "fig-1",
		NfcUID:      "TAG-001",
		CharacterID: &characterID,
		Timestamp:   time.Now(),
	})

	msg := suite.read(alice)
	suite.Equal(service.EventCharacterLinked, msg.Type)
	var event service.BindingEvent
	suite.Require().NoError(json.Unmarshal(msg.Data, &event))
	suite.Equal("fig-1", event.FigurineID)
	suite.Equal("TAG-001", event.NfcUID)

	// bob 收不到 alice 的事件
	suite.Require().NoError(bob.SetReadDeadline(time.Now().Add(100 * time.Millisecond)))
	_, _, err := bob.ReadMessage()
	suite.Error(err)
}

// TestPingPong 测试应用层心跳
func (suite *HubTestSuite) TestPingPong() {
	conn := suite.dial("alice")
	defer conn.Close()

	suite.Require().NoError(conn.WriteJSON(&Message{Type: MessageTypePing}))
	suite.Equal(MessageTypePong, suite.read(conn).Type)

	suite.Require().NoError(conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	suite.Equal(MessageTypeError, suite.read(conn).Type)
}

// TestUnregister 测试断开后清理连接
func (suite *HubTestSuite) TestUnregister() {
	conn := suite.dial("alice")
	conn.Close()

	suite.Eventually(func() bool {
		return !suite.hub.IsOnline("alice")
	}, 2*time.Second, 10*time.Millisecond)

	suite.ErrorIs(suite.hub.SendToUser("alice", &Message{Type: MessageTypePing}), ErrUserNotConnected)
}

// TestShutdown 测试Hub停止时关闭所有连接
func (suite *HubTestSuite) TestShutdown() {
	conn := suite.dial("alice")
	defer conn.Close()

	suite.cancel()

	suite.Require().NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, _, err := conn.ReadMessage()
	suite.Error(err)
	suite.Equal(0, suite.hub.GetOnlineCount())
}

// TestRequiresUser 测试未认证请求被拒绝
func (suite *HubTestSuite) TestRequiresUser() {
	url := "ws" + strings.TrimPrefix(suite.server.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	suite.Error(err)
	suite.Require().NotNil(resp)
	suite.Equal(401, resp.StatusCode)
}

func TestHubSuite(t *testing.T) {
	suite.Run(t, new(HubTestSuite))
}
