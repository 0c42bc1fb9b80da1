// Package server exposes a workbook over websockets: clients send cell
// edits and sheet operations as JSON messages, and every value change
// produced by the update engine is broadcast to all connected clients.
package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"sheets/value"
	"sheets/workbook"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all for local dev
	},
}

// Request is one client message.
type Request struct {
	Type     string `json:"type"`
	Sheet    string `json:"sheet,omitempty"`
	Location string `json:"location,omitempty"`
	Contents string `json:"contents,omitempty"`
	Name     string `json:"name,omitempty"`
	NewName  string `json:"new_name,omitempty"`
}

// Response is one server message.
type Response struct {
	Type     string   `json:"type"`
	Sheet    string   `json:"sheet,omitempty"`
	Location string   `json:"location,omitempty"`
	Contents string   `json:"contents,omitempty"`
	Value    string   `json:"value,omitempty"`
	Sheets   []string `json:"sheets,omitempty"`
	Error    string   `json:"error,omitempty"`
}

type Server struct {
	mu      sync.Mutex
	wb      *workbook.Workbook
	clients map[*websocket.Conn]bool
}

// NewServer builds a server around a fresh workbook with a demo sheet. The
// workbook itself is single-threaded; the server's mutex serialises all
// access, connection handlers included.
func NewServer() *Server {
	s := &Server{
		wb:      workbook.New(),
		clients: make(map[*websocket.Conn]bool),
	}
	s.wb.NotifyCellsChanged(s.broadcastChanged)
	s.populateDemo()
	return s
}

// Run serves the websocket endpoint on /ws until the listener fails.
func (s *Server) Run(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleWebSocket)
	log.Printf("workbook server listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}

func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("upgrade error:", err)
		return
	}

	s.mu.Lock()
	s.clients[conn] = true
	s.sendInitialState(conn)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var req Request
		if err := json.Unmarshal(msg, &req); err != nil {
			log.Println("bad request:", err)
			continue
		}
		s.handle(conn, req)
	}
}

func (s *Server) handle(conn *websocket.Conn, req Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	switch req.Type {
	case "set_cell":
		err = s.wb.SetCellContents(req.Sheet, req.Location, req.Contents)
	case "new_sheet":
		_, _, err = s.wb.NewSheet(req.Name)
		if err == nil {
			s.broadcastSheets()
		}
	case "del_sheet":
		err = s.wb.DelSheet(req.Name)
		if err == nil {
			s.broadcastSheets()
		}
	case "rename_sheet":
		err = s.wb.RenameSheet(req.Name, req.NewName)
		if err == nil {
			s.broadcastSheets()
		}
	case "load_demo":
		s.wb = workbook.New()
		s.wb.NotifyCellsChanged(s.broadcastChanged)
		s.populateDemo()
		s.broadcastAll()
	default:
		log.Printf("unknown request type %q", req.Type)
		return
	}
	if err != nil {
		s.writeJSON(conn, Response{Type: "error", Error: err.Error()})
	}
}

// broadcastChanged is the workbook notifier: one cell message per changed
// cell, to every client. Runs inside the update transaction, so the mutex
// is already held by the mutating handler.
func (s *Server) broadcastChanged(wb *workbook.Workbook, changed []workbook.CellKey) {
	for _, key := range changed {
		resp := s.cellResponse(key.Sheet, key.Location)
		for client := range s.clients {
			s.writeJSON(client, resp)
		}
	}
}

func (s *Server) cellResponse(sheet, location string) Response {
	contents, _ := s.wb.GetCellContents(sheet, location)
	v, _ := s.wb.GetCellValue(sheet, location)
	return Response{
		Type:     "cell",
		Sheet:    sheet,
		Location: location,
		Contents: contents,
		Value:    value.Display(v),
	}
}

func (s *Server) sendInitialState(conn *websocket.Conn) {
	s.writeJSON(conn, Response{Type: "sheets", Sheets: s.wb.ListSheets()})
	for _, name := range s.wb.ListSheets() {
		cells, err := s.wb.SheetCells(name)
		if err != nil {
			continue
		}
		for location := range cells {
			s.writeJSON(conn, s.cellResponse(name, location))
		}
	}
}

func (s *Server) broadcastAll() {
	reset := Response{Type: "reset"}
	for client := range s.clients {
		s.writeJSON(client, reset)
	}
	for client := range s.clients {
		s.sendInitialState(client)
	}
}

func (s *Server) broadcastSheets() {
	resp := Response{Type: "sheets", Sheets: s.wb.ListSheets()}
	for client := range s.clients {
		s.writeJSON(client, resp)
	}
}

func (s *Server) writeJSON(conn *websocket.Conn, resp Response) {
	if err := conn.WriteJSON(resp); err != nil {
		log.Printf("write failed: %v", err)
		_ = conn.Close()
		delete(s.clients, conn)
	}
}

func (s *Server) mustSet(sheet, location, contents string) {
	if err := s.wb.SetCellContents(sheet, location, contents); err != nil {
		log.Printf("set %s!%s failed: %v", sheet, location, err)
	}
}

func (s *Server) populateDemo() {
	_, name, err := s.wb.NewSheet("")
	if err != nil {
		log.Printf("demo sheet failed: %v", err)
		return
	}

	s.mustSet(name, "A1", "Sheets Demo")

	// Math
	s.mustSet(name, "A3", "1. Math")
	s.mustSet(name, "B3", "10")
	s.mustSet(name, "C3", "32")
	s.mustSet(name, "D3", "=B3+C3")

	// Logic
	s.mustSet(name, "A5", "2. Logic")
	s.mustSet(name, "B5", "true")
	s.mustSet(name, "C5", `=IF(B5,"Yes","No")`)

	// Text
	s.mustSet(name, "A7", "3. Text")
	s.mustSet(name, "B7", "spread")
	s.mustSet(name, "C7", `=B7&"sheet"`)

	// Chain
	s.mustSet(name, "A9", "4. Chain")
	s.mustSet(name, "B9", "1")
	s.mustSet(name, "C9", "=B9+1")
	s.mustSet(name, "D9", "=C9*2")
	s.mustSet(name, "E9", "=D9*10")
}
