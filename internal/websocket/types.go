package websocket

import (
	"time"

	"github.com/coder/websocket"
)

// Message types sent to the browser.
const (
	MessageReload     = "reload"
	MessageBuildError = "build_error"
)

// Client represents a live reload connection
type Client struct {
	conn         *websocket.Conn
	send         chan []byte
	lastActivity time.Time
}

// UpdateMessage represents a message sent to the browser
type UpdateMessage struct {
	Type      string    `json:"type"`
	Content   string    `json:"content,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// OriginValidator decides whether a connection origin is accepted
type OriginValidator interface {
	IsAllowedOrigin(origin string) bool
}

// ReloadScript connects the page to the live reload endpoint and reloads it
// whenever a build completes.
const ReloadScript = `<script>
(function () {
  var connect = function () {
    var scheme = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(scheme + location.host + "` + Path + `");
    ws.onmessage = function (event) {
      var msg = JSON.parse(event.data);
      if (msg.type === "` + MessageReload + `" || msg.type === "` + MessageBuildError + `") {
        location.reload();
      }
    };
    ws.onclose = function () { setTimeout(connect, 1000); };
  };
  connect();
})();
</script>`

// Path is the endpoint the reload script connects to.
const Path = "/livereload"
