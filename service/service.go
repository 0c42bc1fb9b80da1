// Package service exposes workbook operations over a ZeroMQ REP socket
// with JSON request/reply messages, for embedding the engine behind other
// processes.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/go-zeromq/zmq4"

	"sheets/value"
	"sheets/workbook"
)

// Request is one operation against the workbook.
type Request struct {
	Op       string `json:"op"`
	Sheet    string `json:"sheet,omitempty"`
	Location string `json:"location,omitempty"`
	Contents string `json:"contents,omitempty"`
	Name     string `json:"name,omitempty"`
	NewName  string `json:"new_name,omitempty"`
	Start    string `json:"start,omitempty"`
	End      string `json:"end,omitempty"`
	To       string `json:"to,omitempty"`
	ToSheet  string `json:"to_sheet,omitempty"`
	Index    int    `json:"index,omitempty"`
}

// Response carries the result of one Request.
type Response struct {
	OK       bool     `json:"ok"`
	Error    string   `json:"error,omitempty"`
	Value    string   `json:"value,omitempty"`
	Contents string   `json:"contents,omitempty"`
	Name     string   `json:"name,omitempty"`
	Index    int      `json:"index,omitempty"`
	Sheets   []string `json:"sheets,omitempty"`
	Cols     int      `json:"cols,omitempty"`
	Rows     int      `json:"rows,omitempty"`
}

// Service owns one workbook and one REP socket. Requests arrive strictly
// one at a time on a REP socket, which matches the workbook's
// single-threaded execution model.
type Service struct {
	wb  *workbook.Workbook
	rep zmq4.Socket
}

func New(ctx context.Context) *Service {
	return &Service{
		wb:  workbook.New(),
		rep: zmq4.NewRep(ctx),
	}
}

// Run binds the endpoint and serves requests until the socket fails or the
// context is cancelled.
func (s *Service) Run(endpoint string) error {
	if err := s.rep.Listen(endpoint); err != nil {
		return fmt.Errorf("listen %s: %w", endpoint, err)
	}
	defer s.rep.Close()
	log.Printf("workbook service listening on %s", endpoint)

	for {
		msg, err := s.rep.Recv()
		if err != nil {
			return err
		}
		reply := s.dispatch(msg.Bytes())
		out, err := json.Marshal(reply)
		if err != nil {
			out = []byte(`{"ok":false,"error":"internal encode failure"}`)
		}
		if err := s.rep.Send(zmq4.NewMsg(out)); err != nil {
			return err
		}
	}
}

func (s *Service) dispatch(raw []byte) Response {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return Response{Error: "bad request: " + err.Error()}
	}
	resp, err := s.apply(req)
	if err != nil {
		return Response{Error: err.Error()}
	}
	resp.OK = true
	return resp
}

func (s *Service) apply(req Request) (Response, error) {
	switch req.Op {
	case "new_sheet":
		index, name, err := s.wb.NewSheet(req.Name)
		if err != nil {
			return Response{}, err
		}
		return Response{Index: index, Name: name}, nil
	case "del_sheet":
		return Response{}, s.wb.DelSheet(req.Name)
	case "rename_sheet":
		return Response{}, s.wb.RenameSheet(req.Name, req.NewName)
	case "move_sheet":
		return Response{}, s.wb.MoveSheet(req.Name, req.Index)
	case "copy_sheet":
		index, name, err := s.wb.CopySheet(req.Name)
		if err != nil {
			return Response{}, err
		}
		return Response{Index: index, Name: name}, nil
	case "list_sheets":
		return Response{Sheets: s.wb.ListSheets()}, nil
	case "set_cell":
		return Response{}, s.wb.SetCellContents(req.Sheet, req.Location, req.Contents)
	case "get_contents":
		contents, err := s.wb.GetCellContents(req.Sheet, req.Location)
		if err != nil {
			return Response{}, err
		}
		return Response{Contents: contents}, nil
	case "get_value":
		v, err := s.wb.GetCellValue(req.Sheet, req.Location)
		if err != nil {
			return Response{}, err
		}
		return Response{Value: value.Display(v)}, nil
	case "extent":
		cols, rows, err := s.wb.GetSheetExtent(req.Sheet)
		if err != nil {
			return Response{}, err
		}
		return Response{Cols: cols, Rows: rows}, nil
	case "move_cells":
		return Response{}, s.wb.MoveCells(req.Sheet, req.Start, req.End, req.To, req.ToSheet)
	case "copy_cells":
		return Response{}, s.wb.CopyCells(req.Sheet, req.Start, req.End, req.To, req.ToSheet)
	default:
		return Response{}, fmt.Errorf("unknown op %q", req.Op)
	}
}
