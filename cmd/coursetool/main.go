package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/antigravity-events/otrack/internal/core/domain"
	"github.com/antigravity-events/otrack/internal/core/usecases"
	"github.com/antigravity-events/otrack/internal/coursexml"
	"github.com/antigravity-events/otrack/internal/pkg/geospatial"
)

// coursetool runs the course-geometry pipeline against local files and prints
// JSON. The pipeline itself only ever sees in-memory buffers; all file I/O
// lives here.
//
//	coursetool parse course.xml
//	coursetool parse -worldfile map.pgw -width 2480 -height 3508 course.xml
//	coursetool worldfile -width 2480 -height 3508 map.pgw
//	coursetool solve gcps.json
func main() {
	if len(os.Args) < 2 {
		usage()
	}

	switch os.Args[1] {
	case "parse":
		runParse(os.Args[2:])
	case "worldfile":
		runWorldFile(os.Args[2:])
	case "solve":
		runSolve(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: %s <command> [flags] <file>

commands:
  parse      parse course XML, optionally georeference via a world file
  worldfile  parse a world file and print its WGS 84 bounds
  solve      fit a calibration matrix to ground control points (JSON array)
`, os.Args[0])
	os.Exit(2)
}

func runParse(args []string) {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	worldFilePath := fs.String("worldfile", "", "world file (.pgw/.jgw/.tfw) for georeferencing")
	widthPx := fs.Float64("width", 0, "map image width in pixels")
	heightPx := fs.Float64("height", 0, "map image height in pixels")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		log.Fatal("parse: exactly one course XML file is required")
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		log.Fatalf("read course file: %v", err)
	}

	svc := usecases.NewCourseService(coursexml.DefaultOptions())
	res := svc.Parse(data)

	for _, w := range res.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}

	if *worldFilePath != "" {
		if *widthPx <= 0 || *heightPx <= 0 {
			log.Fatal("parse: -width and -height are required with -worldfile")
		}
		text, err := os.ReadFile(*worldFilePath)
		if err != nil {
			log.Fatalf("read world file: %v", err)
		}
		wf, err := geospatial.ParseWorldFile(string(text))
		if err != nil {
			log.Fatalf("parse world file: %v", err)
		}
		res.Controls, err = svc.GeoreferenceWorldFile(res.Controls, wf, *widthPx, *heightPx)
		if err != nil {
			log.Fatalf("georeference: %v", err)
		}
	}

	printJSON(res)
}

func runWorldFile(args []string) {
	fs := flag.NewFlagSet("worldfile", flag.ExitOnError)
	widthPx := fs.Float64("width", 0, "map image width in pixels")
	heightPx := fs.Float64("height", 0, "map image height in pixels")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		log.Fatal("worldfile: exactly one world file is required")
	}
	if *widthPx <= 0 || *heightPx <= 0 {
		log.Fatal("worldfile: -width and -height are required")
	}
	text, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		log.Fatalf("read world file: %v", err)
	}

	res, err := usecases.NewCalibrationService().ParseWorldFile(string(text), *widthPx, *heightPx)
	if err != nil {
		log.Fatalf("parse world file: %v", err)
	}
	printJSON(res)
}

func runSolve(args []string) {
	fs := flag.NewFlagSet("solve", flag.ExitOnError)
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		log.Fatal("solve: exactly one GCP JSON file is required")
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		log.Fatalf("read gcp file: %v", err)
	}

	var gcps []domain.GCP
	if err := json.Unmarshal(data, &gcps); err != nil {
		log.Fatalf("parse gcp file: %v", err)
	}

	res := usecases.NewCalibrationService().Solve(gcps)
	if !res.IsValid {
		fmt.Fprintf(os.Stderr, "warning: %s\n", res.ErrorMsg)
	}
	printJSON(res)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("encode: %v", err)
	}
}
