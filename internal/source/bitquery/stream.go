package bitquery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"univ3-liquidity-lab/internal/domain"
)

// StreamConfig configures live subscription behavior.
type StreamConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultStreamConfig returns default stream configuration.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// mintStreamQuery is the subscription form of the mint call selection,
// without a time range: the server pushes new blocks as they arrive.
const mintStreamQuery = `
subscription ($token0: String!, $token1: String!) {
  EVM(network: eth) {
    Calls(
      where: {
        Call: {
          To: {is: "` + positionManager + `"}
          Signature: {Name: {is: "mint"}}
          Success: true
        }
        Arguments: {
          includes: [
            {Index: {eq: 0}, Value: {Address: {is: $token0}}}
            {Index: {eq: 1}, Value: {Address: {is: $token1}}}
          ]
        }
      }
    ) {
      Block { Time }
      Transaction { Hash From }
      Arguments { Name Index Value { ...argValue } }
      Returns { Name Index Value { ...argValue } }
    }
  }
}
fragment argValue on EVM_ABI_Value {
  ... on EVM_ABI_Integer_Value_Arg { integer }
  ... on EVM_ABI_BigInt_Value_Arg { bigInteger }
  ... on EVM_ABI_Address_Value_Arg { address }
  ... on EVM_ABI_String_Value_Arg { string }
}`

// MintStream delivers live mint records over a graphql-transport-ws
// subscription. It reconnects with exponential backoff and resubscribes
// after connection loss.
type MintStream struct {
	endpoint string
	apiKey   string
	pool     domain.PoolMeta
	config   StreamConfig

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	records chan *domain.MintRecord
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewMintStream connects to the subscription endpoint and starts delivering
// mint records for the pool's token pair.
func NewMintStream(ctx context.Context, endpoint, apiKey string, pool domain.PoolMeta, config *StreamConfig) (*MintStream, error) {
	cfg := DefaultStreamConfig()
	if config != nil {
		cfg = *config
	}

	s := &MintStream{
		endpoint: endpoint,
		apiKey:   apiKey,
		pool:     pool,
		config:   cfg,
		records:  make(chan *domain.MintRecord, 256),
		done:     make(chan struct{}),
	}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go s.readLoop()

	return s, nil
}

// Records is the channel of live mint records. Closed when the stream is
// closed.
func (s *MintStream) Records() <-chan *domain.MintRecord {
	return s.records
}

// Close terminates the subscription and closes the record channel.
func (s *MintStream) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	close(s.records)
	return nil
}

// gqlWSMessage is the graphql-transport-ws envelope.
type gqlWSMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// connect dials the endpoint, performs the connection_init handshake, and
// sends the mint subscription.
func (s *MintStream) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		Subprotocols:     []string{"graphql-transport-ws"},
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.apiKey)

	conn, _, err := dialer.DialContext(ctx, s.endpoint, header)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	init := gqlWSMessage{Type: "connection_init"}
	conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := conn.WriteJSON(init); err != nil {
		conn.Close()
		return fmt.Errorf("write connection_init: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	var ack gqlWSMessage
	if err := conn.ReadJSON(&ack); err != nil {
		conn.Close()
		return fmt.Errorf("read connection_ack: %w", err)
	}
	if ack.Type != "connection_ack" {
		conn.Close()
		return fmt.Errorf("expected connection_ack, got %q", ack.Type)
	}

	payload, err := json.Marshal(graphqlRequest{
		Query: mintStreamQuery,
		Variables: map[string]interface{}{
			"token0": s.pool.Token0,
			"token1": s.pool.Token1,
		},
	})
	if err != nil {
		conn.Close()
		return fmt.Errorf("marshal subscribe payload: %w", err)
	}

	sub := gqlWSMessage{ID: "1", Type: "subscribe", Payload: payload}
	conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return fmt.Errorf("write subscribe: %w", err)
	}

	s.connMu.Lock()
	if s.closed.Load() {
		// Close already ran; publishing the connection now would leak it.
		s.connMu.Unlock()
		conn.Close()
		return fmt.Errorf("stream closed")
	}
	s.conn = conn
	s.connMu.Unlock()
	return nil
}

// readLoop reads subscription messages, converting next payloads to mint
// records. On connection loss it reconnects with exponential backoff.
func (s *MintStream) readLoop() {
	defer s.wg.Done()

	delay := s.config.ReconnectDelay

	for !s.closed.Load() {
		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn == nil {
			if !s.reconnect(delay) {
				return
			}
			delay = time.Duration(float64(delay) * 2)
			if delay > s.config.MaxReconnectDelay {
				delay = s.config.MaxReconnectDelay
			}
			continue
		}

		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		var msg gqlWSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if s.closed.Load() {
				return
			}
			s.connMu.Lock()
			s.conn.Close()
			s.conn = nil
			s.connMu.Unlock()
			continue
		}

		delay = s.config.ReconnectDelay
		s.handleMessage(&msg)
	}
}

// reconnect waits the delay then re-establishes connection and
// subscription. Returns false when the stream was closed meanwhile.
func (s *MintStream) reconnect(delay time.Duration) bool {
	select {
	case <-s.done:
		return false
	case <-time.After(delay):
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Failure leaves conn nil; the loop retries with a longer delay.
	s.connect(ctx)
	return true
}

// handleMessage dispatches one protocol message.
func (s *MintStream) handleMessage(msg *gqlWSMessage) {
	switch msg.Type {
	case "next":
		s.handleNext(msg.Payload)
	case "ping":
		// All writes go through connMu; Close writes the close frame from
		// another goroutine and the connection allows one writer at a time.
		s.connMu.Lock()
		if s.conn != nil {
			s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			s.conn.WriteJSON(gqlWSMessage{Type: "pong"})
		}
		s.connMu.Unlock()
	case "complete", "error":
		// Server ended the subscription; force a reconnect cycle.
		s.connMu.Lock()
		if s.conn != nil {
			s.conn.Close()
			s.conn = nil
		}
		s.connMu.Unlock()
	}
}

// handleNext parses a subscription data frame and forwards its mint records.
func (s *MintStream) handleNext(payload json.RawMessage) {
	var frame struct {
		Data callsData `json:"data"`
	}
	if err := json.Unmarshal(payload, &frame); err != nil {
		return
	}
	for _, rec := range parseMints(frame.Data.EVM.Calls) {
		select {
		case s.records <- rec:
		case <-s.done:
			return
		}
	}
}
