package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"

	"main/internal/recorder"
)

func main() {
	dir := flag.String("dir", "testdata/journal", "Journal directory")
	prefix := flag.String("prefix", "", "Journal file prefix (default: run)")
	decode := flag.Bool("decode", false, "Pretty-print decoded payloads")
	flag.Parse()

	ctx := context.Background()
	var index int
	err := recorder.Walk(ctx, *dir, *prefix, func(ev recorder.Event) error {
		index++
		fmt.Printf("%06d seq=%d type=%s ts=%s len=%d\n",
			index, ev.Seq, eventTypeName(ev.Type), ev.Time.Format("2006-01-02T15:04:05"), len(ev.Payload))
		if *decode {
			printDecoded(ev)
		}
		return nil
	})
	if err != nil {
		log.Fatalf("journal walk failed: %v", err)
	}
	fmt.Printf("%d records\n", index)
}

func eventTypeName(t recorder.EventType) string {
	switch t {
	case recorder.EventFill:
		return "Fill"
	case recorder.EventEquity:
		return "Equity"
	default:
		return fmt.Sprintf("Unknown(%d)", uint16(t))
	}
}

func printDecoded(ev recorder.Event) {
	var pretty map[string]any
	if err := json.Unmarshal(ev.Payload, &pretty); err != nil {
		fmt.Printf("       decode failed: %v\n", err)
		return
	}
	fmt.Printf("       %v\n", pretty)
}
