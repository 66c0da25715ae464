package audit

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/louisbranch/quickroll/internal/services/roll/domain/message"
	"github.com/louisbranch/quickroll/internal/services/roll/domain/reroll"
	"github.com/louisbranch/quickroll/internal/services/roll/storage"
)

// Build summarizes changes into an audit record for msgID. ID and CreatedAt
// are left for the Emitter to assign.
func Build(msgID, author string, policy message.KeepPolicy, changes []reroll.Change) storage.AuditRecord {
	rec := storage.AuditRecord{
		MessageID:  msgID,
		Author:     author,
		KeepPolicy: policy,
		Rows:       make([]storage.AuditRow, 0, len(changes)),
	}
	for _, change := range changes {
		row := storage.AuditRow{
			Faces:      change.Faces,
			OldValue:   change.OldValue,
			NewValue:   change.NewValue,
			FinalValue: change.FinalValue,
			Delta:      change.Delta(),
		}
		rec.Rows = append(rec.Rows, row)
		rec.TotalDelta += row.Delta
	}
	return rec
}

// Direction classifies a change as "positive", "negative" or "neutral".
func Direction(delta int) string {
	switch {
	case delta > 0:
		return "positive"
	case delta < 0:
		return "negative"
	default:
		return "neutral"
	}
}

// WriteTable renders rec as an aligned text table.
func WriteTable(w io.Writer, rec storage.AuditRecord) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Keep %s\t\t\t\t\n", rec.KeepPolicy)
	fmt.Fprintln(tw, "Die\tOld\tNew\tFinal\tChange")
	for _, row := range rec.Rows {
		fmt.Fprintf(tw, "d%d\t%d\t%d\t%d\t%s\n", row.Faces, row.OldValue, row.NewValue, row.FinalValue, signed(row.Delta))
	}
	fmt.Fprintf(tw, "Total\t\t\t\t%s\n", signed(rec.TotalDelta))
	return tw.Flush()
}

func signed(v int) string {
	if v > 0 {
		return fmt.Sprintf("+%d", v)
	}
	return fmt.Sprintf("%d", v)
}
