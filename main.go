package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"sheets/ast"
	"sheets/parser"
	"sheets/ref"
	"sheets/repl"
	"sheets/server"
	"sheets/service"
	"sheets/store"
	"sheets/value"
	"sheets/workbook"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	sub := os.Args[1]
	switch sub {
	case "-h", "--help", "help":
		usage()
	case "repl":
		os.Exit(replCommand(os.Args[2:]))
	case "serve":
		os.Exit(serveCommand(os.Args[2:]))
	case "service":
		os.Exit(serviceCommand(os.Args[2:]))
	case "parse":
		os.Exit(parseCommand(os.Args[2:]))
	case "run":
		os.Exit(runCommand(os.Args[2:]))
	case "db-save", "db-load":
		os.Exit(dbCommand(sub, os.Args[2:]))
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand: %s\n", sub)
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage:\n")
	fmt.Fprintf(os.Stderr, "  sheets <command> [arguments]\n")
	fmt.Fprintf(os.Stderr, "\nCommands:\n")
	fmt.Fprintf(os.Stderr, "  repl [file.json]        interactive workbook shell\n")
	fmt.Fprintf(os.Stderr, "  serve [addr]            websocket workbook server (default :8080)\n")
	fmt.Fprintf(os.Stderr, "  service [endpoint]      zmq workbook service (default tcp://127.0.0.1:5555)\n")
	fmt.Fprintf(os.Stderr, "  parse <formula>         parse a formula and print the tree\n")
	fmt.Fprintf(os.Stderr, "  run <file.json>         load a workbook and print its computed cells\n")
	fmt.Fprintf(os.Stderr, "  db-save <file.json>     store a workbook JSON file in Postgres ($SHEETS_DSN)\n")
	fmt.Fprintf(os.Stderr, "  db-load <file.json>     write the stored workbook to a JSON file\n")
}

func replCommand(args []string) int {
	wb := workbook.New()
	if len(args) == 1 {
		loaded, err := loadFile(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "load %s: %v\n", args[0], err)
			return 1
		}
		wb = loaded
	}
	repl.Start(os.Stdin, os.Stdout, wb)
	return 0
}

func serveCommand(args []string) int {
	addr := ":8080"
	if len(args) > 0 {
		addr = args[0]
	}
	if err := server.NewServer().Run(addr); err != nil {
		fmt.Fprintf(os.Stderr, "serve: %v\n", err)
		return 1
	}
	return 0
}

func serviceCommand(args []string) int {
	endpoint := "tcp://127.0.0.1:5555"
	if len(args) > 0 {
		endpoint = args[0]
	}
	svc := service.New(context.Background())
	if err := svc.Run(endpoint); err != nil {
		fmt.Fprintf(os.Stderr, "service: %v\n", err)
		return 1
	}
	return 0
}

func parseCommand(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: sheets parse <formula>")
		return 2
	}
	tree, err := parser.Parse(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse error: %v\n", err)
		return 1
	}
	fmt.Print(ast.Format(tree))
	fmt.Printf("canonical: %s\n", ast.Formula(tree))
	return 0
}

func runCommand(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: sheets run <file.json>")
		return 2
	}
	wb, err := loadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", args[0], err)
		return 1
	}
	for _, name := range wb.ListSheets() {
		cols, rows, _ := wb.GetSheetExtent(name)
		fmt.Printf("%s (%dx%d)\n", name, cols, rows)
		cells, err := wb.SheetCells(name)
		if err != nil {
			continue
		}
		for _, location := range sortedLocations(cells) {
			v, _ := wb.GetCellValue(name, location)
			fmt.Printf("  %-8s %-24q %s\n", location, cells[location], value.Display(v))
		}
	}
	return 0
}

func dbCommand(sub string, args []string) int {
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "usage: sheets %s <file.json>\n", sub)
		return 2
	}
	dsn := os.Getenv("SHEETS_DSN")
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "SHEETS_DSN is not set")
		return 2
	}
	ctx := context.Background()
	db, err := store.Open(ctx, dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		return 1
	}
	defer db.Close()
	if err := store.Init(ctx, db); err != nil {
		fmt.Fprintf(os.Stderr, "init: %v\n", err)
		return 1
	}

	switch sub {
	case "db-save":
		wb, err := loadFile(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "load %s: %v\n", args[0], err)
			return 1
		}
		if err := store.Save(ctx, db, wb); err != nil {
			fmt.Fprintf(os.Stderr, "save: %v\n", err)
			return 1
		}
	case "db-load":
		wb, err := store.Load(ctx, db)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load: %v\n", err)
			return 1
		}
		f, err := os.Create(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "create %s: %v\n", args[0], err)
			return 1
		}
		defer f.Close()
		if err := wb.SaveWorkbook(f); err != nil {
			fmt.Fprintf(os.Stderr, "write: %v\n", err)
			return 1
		}
	}
	return 0
}

func loadFile(path string) (*workbook.Workbook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return workbook.LoadWorkbook(f)
}

// sortedLocations orders cell locations by coordinates for stable output.
func sortedLocations(cells map[string]string) []string {
	out := maps.Keys(cells)
	slices.SortFunc(out, func(a, b string) int {
		ca, errA := ref.ParseLocation(a)
		cb, errB := ref.ParseLocation(b)
		if errA != nil || errB != nil {
			return strings.Compare(a, b)
		}
		if ca.Row != cb.Row {
			return ca.Row - cb.Row
		}
		return ca.Col - cb.Col
	})
	return out
}
