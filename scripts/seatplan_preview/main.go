package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/noah-isme/exam-seating-api/internal/models"
	"github.com/noah-isme/exam-seating-api/internal/seating"
)

type input struct {
	Courses    []models.ExamCourse `json:"courses"`
	Classrooms []models.Classroom  `json:"classrooms"`
}

func main() {
	var (
		inputPath string
		asJSON    bool
	)

	flag.StringVar(&inputPath, "input", "-", "Path to a JSON file with courses and classrooms, - for stdin")
	flag.BoolVar(&asJSON, "json", false, "Print the full allocation as JSON instead of grids")
	flag.Parse()

	req, err := loadInput(inputPath)
	if err != nil {
		log.Fatalf("failed to load input: %v", err)
	}

	result, err := seating.Allocate(req.Courses, req.Classrooms)
	if err != nil {
		var capErr *seating.CapacityError
		if errors.As(err, &capErr) {
			log.Fatalf("%v (short by %d)", capErr, capErr.Shortfall())
		}
		log.Fatalf("allocation failed: %v", err)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			log.Fatalf("failed to encode result: %v", err)
		}
		return
	}

	printStatistics(os.Stdout, result.Statistics)
	for _, alloc := range result.ClassroomAllocations {
		printGrid(os.Stdout, alloc)
	}
}

func loadInput(path string) (*input, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var req input
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &req, nil
}

func printStatistics(w io.Writer, stats models.SeatingStatistics) {
	fmt.Fprintf(w, "students: %d  seats: %d\n", stats.TotalStudents, stats.TotalSeats)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CLASSROOM\tUTILIZATION")
	for _, u := range stats.ClassroomUtilization {
		fmt.Fprintf(tw, "%s\t%d%%\n", u.Classroom, u.Utilization)
	}
	_ = tw.Flush()
	fmt.Fprintln(w)
}

// printGrid renders one room. Free seats print as "." and unavailable seats as "x".
func printGrid(w io.Writer, alloc models.ClassroomAllocation) {
	fmt.Fprintf(w, "== %s (%s) ==\n", alloc.Classroom.Name, alloc.Classroom.ID)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, row := range alloc.SeatMatrix {
		cells := make([]string, len(row))
		for c, seat := range row {
			switch {
			case seat.HasStudent():
				cells[c] = seat.Student.RollNumber
			case seat.Occupied:
				cells[c] = "x"
			default:
				cells[c] = "."
			}
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	_ = tw.Flush()
	fmt.Fprintln(w)
}
