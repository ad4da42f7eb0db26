package lena

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Speaker labels in the sound-event transcript. CHN is the target child at
// high confidence; CHF is the same child heard faintly, whose timing is too
// unreliable to code.
const (
	SpeakerChildNear  = "CHN"
	SpeakerChildFaint = "CHF"
)

// Event is one speaker-labeled sound event.
type Event struct {
	Speaker      string
	StartSeconds float64
	EndSeconds   float64
}

// ReadTranscript parses an ITS-style transcript, returning every event in
// file order. Events with unparseable timestamps are skipped and logged.
func ReadTranscript(r io.Reader, log *logrus.Logger) ([]Event, error) {
	dec := xml.NewDecoder(r)

	var events []Event
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("lena: read transcript: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "Segment" {
			continue
		}

		ev, err := parseEvent(start)
		if err != nil {
			log.WithFields(logrus.Fields{"error": err}).
				Warn("skipping malformed transcript event")
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func parseEvent(start xml.StartElement) (Event, error) {
	var ev Event
	var startAttr, endAttr string

	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "spkr":
			ev.Speaker = attr.Value
		case "startTime":
			startAttr = attr.Value
		case "endTime":
			endAttr = attr.Value
		}
	}

	if ev.Speaker == "" {
		return Event{}, fmt.Errorf("event has no speaker label")
	}

	var err error
	if ev.StartSeconds, err = parseClock(startAttr); err != nil {
		return Event{}, fmt.Errorf("start time: %w", err)
	}
	if ev.EndSeconds, err = parseClock(endAttr); err != nil {
		return Event{}, fmt.Errorf("end time: %w", err)
	}
	if ev.EndSeconds <= ev.StartSeconds {
		return Event{}, fmt.Errorf("end %v not after start %v", ev.EndSeconds, ev.StartSeconds)
	}
	return ev, nil
}

// parseClock parses the transcript's ISO 8601 duration form "PT<seconds>S",
// e.g. "PT21.83S".
func parseClock(s string) (float64, error) {
	if !strings.HasPrefix(s, "PT") || !strings.HasSuffix(s, "S") {
		return 0, fmt.Errorf("timestamp %q is not PT...S", s)
	}
	v, err := strconv.ParseFloat(s[2:len(s)-1], 64)
	if err != nil {
		return 0, fmt.Errorf("timestamp %q: %w", s, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("timestamp %q is negative", s)
	}
	return v, nil
}
