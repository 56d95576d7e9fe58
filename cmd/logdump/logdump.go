package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Auyushg/Robonauts-2023/pkg/datalog"
)

// Dumps a data log as CSV.
func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Println("Usage: logdump <file>")
		os.Exit(1)
	}
	f, err := os.Open(flag.Arg(0))
	if err != nil {
		fmt.Println("Failed to open log:", err)
		os.Exit(1)
	}
	defer f.Close()

	r, err := datalog.NewReader(f)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	fmt.Printf("# session %s started %s\n", r.Header.Session, r.Header.Started.Format(time.RFC3339))
	fmt.Println("elapsed," + strings.Join(r.Header.Vars, ","))
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return
		} else if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		fields := []string{fmt.Sprintf("%.3f", time.Duration(rec.Elapsed).Seconds())}
		for _, v := range rec.Values {
			fields = append(fields, fmt.Sprintf("%g", v))
		}
		fmt.Println(strings.Join(fields, ","))
	}
}
