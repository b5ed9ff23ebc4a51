package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/helmcode/crewboard/internal/events"
)

func newWatchCmd() *cobra.Command {
	var (
		eventType string
		format    string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print entity change events from NATS",
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "text" {
				return fmt.Errorf("unsupported format %q (want json or text)", format)
			}

			pub, err := connectNATS(cmd, mustConfig(cmd))
			if err != nil {
				return err
			}
			defer pub.Close()

			subject := events.Wildcard(pub.SubjectPrefix())
			if eventType != "" {
				if subject, err = events.Subject(pub.SubjectPrefix(), events.Type(eventType)); err != nil {
					return err
				}
			}

			var mu sync.Mutex
			out := cmd.OutOrStdout()
			err = pub.Subscribe(subject, func(ev *events.Event) {
				mu.Lock()
				defer mu.Unlock()
				writeEvent(out, format, ev)
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "watching %s\n", subject)

			<-cmd.Context().Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&eventType, "type", "", "Only show one event type, e.g. task.completed")
	cmd.Flags().StringVar(&format, "format", "json", "Output format: json or text")
	return cmd
}

// eventLabel picks the human-readable fields shared by entity payloads.
type eventLabel struct {
	Title  string `json:"title"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

func writeEvent(w io.Writer, format string, ev *events.Event) {
	if format == "json" {
		_ = json.NewEncoder(w).Encode(ev)
		return
	}
	_, _ = fmt.Fprintln(w, formatEvent(ev))
}

// formatEvent renders one event as a single text line.
func formatEvent(ev *events.Event) string {
	parts := []string{ev.Timestamp.UTC().Format(time.RFC3339), string(ev.Type), ev.EntityID}
	if len(ev.Payload) == 0 {
		return strings.Join(parts, " ")
	}
	label, err := events.ParsePayload[eventLabel](ev)
	if err != nil {
		return strings.Join(parts, " ")
	}
	if title := label.Title + label.Name; title != "" {
		parts = append(parts, fmt.Sprintf("%q", title))
	}
	if label.Status != "" {
		parts = append(parts, "["+label.Status+"]")
	}
	return strings.Join(parts, " ")
}
