package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
)

const maxLineSize = 1 << 20

// ServeStdio runs the server over stdin and stdout.
// Blocks until stdin is closed or ctx is cancelled.
func ServeStdio(ctx context.Context, s *Server) error {
	return Serve(ctx, s, os.Stdin, os.Stdout)
}

// Serve reads newline-delimited JSON-RPC requests from in and writes one
// response line per request to out. Notifications get no response.
func Serve(ctx context.Context, s *Server, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	encoder := json.NewEncoder(out)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			resp := errorResponse(nil, ErrCodeParseError, err.Error())
			if err := encoder.Encode(resp); err != nil {
				return fmt.Errorf("failed to encode error response: %w", err)
			}
			continue
		}

		resp := s.HandleRequest(ctx, req)
		if req.IsNotification() {
			continue
		}
		if err := encoder.Encode(resp); err != nil {
			return fmt.Errorf("failed to encode response: %w", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}
	return nil
}

// ServeHTTP returns an http.Handler for streamable HTTP transport.
// Handles POST requests with JSON-RPC bodies and returns JSON responses.
func ServeHTTP(s *Server) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var mcpReq MCPRequest
		if err := json.NewDecoder(io.LimitReader(req.Body, maxLineSize)).Decode(&mcpReq); err != nil {
			writeJSON(w, errorResponse(nil, ErrCodeParseError, err.Error()))
			return
		}

		resp := s.HandleRequest(req.Context(), mcpReq)
		if mcpReq.IsNotification() {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		writeJSON(w, resp)
	})
}

// ServeSSE returns an http.Handler for Server-Sent Events transport.
// Clients POST a request and receive the response as one event.
func ServeSSE(s *Server) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "SSE not supported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		var mcpReq MCPRequest
		if err := json.NewDecoder(io.LimitReader(req.Body, maxLineSize)).Decode(&mcpReq); err != nil {
			writeSSEEvent(w, flusher, "error", errorResponse(nil, ErrCodeParseError, err.Error()))
			return
		}

		resp := s.HandleRequest(req.Context(), mcpReq)
		writeSSEEvent(w, flusher, "message", resp)
	})
}

// Handler mounts the HTTP transports:
//
//	POST /mcp     streamable HTTP
//	POST /sse     server-sent events
//	GET  /healthz liveness and tool statistics
func Handler(s *Server) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/mcp", ServeHTTP(s))
	mux.Handle("/sse", ServeSSE(s))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, map[string]any{"status": "ok", "stats": s.Stats()})
	})
	return mux
}

// ListenAndServe serves Handler(s) on addr until ctx is cancelled, then
// shuts down gracefully.
func ListenAndServe(ctx context.Context, addr string, s *Server) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return serveListener(ctx, ln, s)
}

func serveListener(ctx context.Context, ln net.Listener, s *Server) error {
	srv := &http.Server{
		Handler:           Handler(s),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("http transport listening", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		<-errCh
		return nil
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeSSEEvent(w http.ResponseWriter, f http.Flusher, event string, data any) {
	jsonData, _ := json.Marshal(data)
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return
	}
	f.Flush()
}
