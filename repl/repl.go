// Package repl is an interactive terminal front-end for a workbook. When
// stdin is a TTY it runs in raw mode with line editing and history;
// otherwise it reads lines from the input stream.
package repl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"sheets/value"
	"sheets/workbook"
)

const prompt = "sheets> "

// Start runs the command loop until EOF or the quit command.
func Start(in io.Reader, out io.Writer, wb *workbook.Workbook) {
	readLine, restore := lineReader(in, out)
	defer restore()

	fmt.Fprintf(out, "Workbook shell. Type help for commands.\n")

	for {
		line, err := readLine()
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			return
		}
		execute(out, wb, line)
	}
}

// lineReader prefers a raw-mode terminal with history; it falls back to a
// plain scanner for pipes and tests.
func lineReader(in io.Reader, out io.Writer) (func() (string, error), func()) {
	inFile, inOK := in.(*os.File)
	outFile, outOK := out.(*os.File)
	if inOK && outOK && term.IsTerminal(int(inFile.Fd())) {
		state, err := term.MakeRaw(int(inFile.Fd()))
		if err == nil {
			t := term.NewTerminal(struct {
				io.Reader
				io.Writer
			}{inFile, outFile}, prompt)
			return t.ReadLine, func() { _ = term.Restore(int(inFile.Fd()), state) }
		}
	}
	scanner := bufio.NewScanner(in)
	return func() (string, error) {
		fmt.Fprint(out, prompt)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		return scanner.Text(), nil
	}, func() {}
}

func execute(out io.Writer, wb *workbook.Workbook, line string) {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	var err error
	switch cmd {
	case "help":
		usage(out)
	case "sheets":
		for i, name := range wb.ListSheets() {
			fmt.Fprintf(out, "%d: %s\n", i, name)
		}
	case "new":
		name := ""
		if len(args) > 0 {
			name = strings.Join(args, " ")
		}
		var index int
		index, name, err = wb.NewSheet(name)
		if err == nil {
			fmt.Fprintf(out, "%d: %s\n", index, name)
		}
	case "del":
		err = expectArgs(args, 1)
		if err == nil {
			err = wb.DelSheet(args[0])
		}
	case "rename":
		err = expectArgs(args, 2)
		if err == nil {
			err = wb.RenameSheet(args[0], args[1])
		}
	case "movesheet":
		err = expectArgs(args, 2)
		if err == nil {
			var index int
			if index, err = strconv.Atoi(args[1]); err == nil {
				err = wb.MoveSheet(args[0], index)
			}
		}
	case "set":
		if len(args) < 2 {
			err = fmt.Errorf("usage: set <sheet> <location> [contents]")
			break
		}
		contents := strings.Join(args[2:], " ")
		err = wb.SetCellContents(args[0], args[1], contents)
	case "get":
		err = expectArgs(args, 2)
		if err == nil {
			var contents string
			if contents, err = wb.GetCellContents(args[0], args[1]); err == nil {
				fmt.Fprintf(out, "%s\n", contents)
			}
		}
	case "value":
		err = expectArgs(args, 2)
		if err == nil {
			var v value.Value
			if v, err = wb.GetCellValue(args[0], args[1]); err == nil {
				fmt.Fprintf(out, "%s\n", value.Display(v))
			}
		}
	case "extent":
		err = expectArgs(args, 1)
		if err == nil {
			var cols, rows int
			if cols, rows, err = wb.GetSheetExtent(args[0]); err == nil {
				fmt.Fprintf(out, "%d x %d\n", cols, rows)
			}
		}
	case "move", "copy":
		if len(args) != 4 && len(args) != 5 {
			err = fmt.Errorf("usage: %s <sheet> <start> <end> <to> [tosheet]", cmd)
			break
		}
		toSheet := ""
		if len(args) == 5 {
			toSheet = args[4]
		}
		if cmd == "move" {
			err = wb.MoveCells(args[0], args[1], args[2], args[3], toSheet)
		} else {
			err = wb.CopyCells(args[0], args[1], args[2], args[3], toSheet)
		}
	case "save":
		err = expectArgs(args, 1)
		if err == nil {
			err = saveFile(wb, args[0])
		}
	case "load":
		err = expectArgs(args, 1)
		if err == nil {
			var loaded *workbook.Workbook
			if loaded, err = loadFile(args[0]); err == nil {
				*wb = *loaded
			}
		}
	default:
		err = fmt.Errorf("unknown command %q; type help", cmd)
	}

	if err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
	}
}

func expectArgs(args []string, n int) error {
	if len(args) != n {
		return fmt.Errorf("expected %d argument(s), got %d", n, len(args))
	}
	return nil
}

func saveFile(wb *workbook.Workbook, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return wb.SaveWorkbook(f)
}

func loadFile(path string) (*workbook.Workbook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return workbook.LoadWorkbook(f)
}

func usage(out io.Writer) {
	fmt.Fprint(out, `Commands:
  sheets                              list sheets
  new [name]                          add a sheet
  del <sheet>                         delete a sheet
  rename <sheet> <new-name>           rename a sheet
  movesheet <sheet> <index>           reorder a sheet
  set <sheet> <location> [contents]   set cell contents (empty deletes)
  get <sheet> <location>              show cell contents
  value <sheet> <location>            show computed value
  extent <sheet>                      show sheet extent
  move <sheet> <start> <end> <to> [tosheet]
  copy <sheet> <start> <end> <to> [tosheet]
  save <file> / load <file>           JSON persistence
  quit
`)
}
