package cli

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/client/models"
	"github.com/dmitrijs2005/inspectsync/internal/common"
)

const shortTime = "2006-01-02 15:04"

func (a *App) Start(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errUsage("start <formID> [name=value ...]")
	}

	md, err := models.MetadataFromPairs(args[1:])
	if err != nil {
		return err
	}

	s, err := a.submissionService.Start(ctx, args[0], md)
	if err != nil {
		return err
	}
	printlnFn("Started submission", s.ID)
	return nil
}

func (a *App) Answer(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errUsage("answer <subID> <questionID> [value | -]")
	}
	subID, qid := args[0], args[1]

	sub, err := a.submissionService.Get(ctx, subID)
	if err != nil {
		return err
	}
	form, err := a.catalogService.GetForm(ctx, sub.FormID)
	if err != nil {
		return err
	}
	q, _, ok := form.Question(qid)
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrUnknownQuestion, qid)
	}

	raw := strings.Join(args[2:], " ")
	if raw == "" {
		raw, err = GetAnswerInput(a.reader, q, a.out)
		if err != nil {
			return err
		}
	}

	v, err := parseAnswer(q, raw)
	if err != nil {
		return err
	}
	if _, err := a.submissionService.AddAnswer(ctx, subID, qid, v); err != nil {
		return err
	}
	printlnFn("Saved", qid, "=", v.String())
	return nil
}

// parseAnswer turns user input into a value of the kind q expects. "-" or an
// empty string clears the answer.
func parseAnswer(q models.Question, raw string) (models.AnswerValue, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "-" {
		return models.EmptyValue(), nil
	}

	switch q.Type {
	case models.QuestionNumber:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return models.AnswerValue{}, fmt.Errorf("%w: %q is not a number", common.ErrValidation, raw)
		}
		return models.NumericValue(f), nil
	case models.QuestionSingleChoice:
		return models.ChoiceValue(raw), nil
	case models.QuestionMultipleChoice:
		var items []string
		for _, it := range strings.Split(raw, ",") {
			if it = strings.TrimSpace(it); it != "" {
				items = append(items, it)
			}
		}
		return models.ChoiceValue(items...), nil
	default:
		return models.TextValue(raw), nil
	}
}

func (a *App) Meta(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage("meta <subID>")
	}

	lines, err := GetMetadata(a.reader, a.out)
	if err != nil {
		return err
	}
	md, err := models.MetadataFromPairs(lines)
	if err != nil {
		return err
	}

	if _, err := a.submissionService.UpdateMetadata(ctx, args[0], md); err != nil {
		return err
	}
	printlnFn("Metadata updated")
	return nil
}

func (a *App) Attach(ctx context.Context, args []string) error {
	if len(args) < 3 || len(args) > 4 {
		return errUsage("attach <subID> <stepID> <path> [questionID]")
	}

	var qid *string
	if len(args) == 4 {
		qid = &args[3]
	}

	f, err := a.fileService.Add(ctx, args[0], args[1], qid, args[2])
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("Attached %s (%s, %d bytes) as %s", f.FileName, f.MimeType, f.FileSize, f.ID))
	return nil
}

func (a *App) Files(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage("files <subID>")
	}

	list, err := a.fileService.List(ctx, args[0])
	if err != nil {
		return err
	}
	if len(list) == 0 {
		printlnFn("No files.")
		return nil
	}
	return a.printFiles(list)
}

func (a *App) printFiles(list []*models.FileAttachment) error {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTEP\tQUESTION\tSIZE\tSTATUS")
	for _, f := range list {
		q := "-"
		if f.QuestionID != nil {
			q = *f.QuestionID
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", f.ID, f.FileName, f.StepID, q, f.FileSize, f.SyncStatus)
	}
	return tw.Flush()
}

func (a *App) Detach(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage("detach <fileID>")
	}
	if err := a.fileService.Delete(ctx, args[0]); err != nil {
		return err
	}
	printlnFn("File removed")
	return nil
}

func (a *App) Complete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage("complete <subID>")
	}
	s, err := a.submissionService.Complete(ctx, args[0])
	if err != nil {
		return err
	}
	printlnFn("Completed at", s.CompletedAt.Local().Format(shortTime), "- queued for sync")
	return nil
}

func (a *App) List(ctx context.Context, args []string) error {
	var (
		list []*models.Submission
		err  error
	)
	switch len(args) {
	case 0:
		list, err = a.submissionService.List(ctx)
	case 1:
		st := models.SyncStatus(args[0])
		if !st.Valid() {
			return errUsage("list [pending|syncing|synced|failed]")
		}
		list, err = a.submissionService.ListByStatus(ctx, st)
	default:
		return errUsage("list [pending|syncing|synced|failed]")
	}
	if err != nil {
		return err
	}
	if len(list) == 0 {
		printlnFn("No submissions.")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFORM\tSTATE\tSYNC\tANSWERS\tUPDATED")
	for _, s := range list {
		state := "draft"
		if !s.IsDraft() {
			state = "completed"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			s.ID, s.FormID, state, s.SyncStatus, len(s.Answers), s.UpdatedAt.Local().Format(shortTime))
	}
	return tw.Flush()
}

func (a *App) Show(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage("show <subID>")
	}

	s, err := a.submissionService.Get(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Submission %s\n", s.ID)
	fmt.Fprintf(a.out, "  form:     %s\n", s.FormID)
	fmt.Fprintf(a.out, "  started:  %s\n", s.StartedAt.Local().Format(shortTime))
	fmt.Fprintf(a.out, "  complete: %s\n", formatOptTime(s.CompletedAt))
	fmt.Fprintf(a.out, "  sync:     %s\n", s.SyncStatus)
	if s.SyncedAt != nil {
		fmt.Fprintf(a.out, "  synced:   %s\n", formatOptTime(s.SyncedAt))
	}
	if s.SyncError != "" {
		fmt.Fprintf(a.out, "  error:    %s\n", s.SyncError)
	}

	if len(s.Metadata) > 0 {
		fmt.Fprintln(a.out, "Metadata:")
		for _, k := range slices.Sorted(maps.Keys(s.Metadata)) {
			fmt.Fprintf(a.out, "  %s = %v\n", k, s.Metadata[k])
		}
	}

	if len(s.Answers) > 0 {
		fmt.Fprintln(a.out, "Answers:")
		for _, ans := range s.Answers {
			line := fmt.Sprintf("  %s: %s", ans.QuestionID, ans.Value.String())
			if len(ans.FileIDs) > 0 {
				line += fmt.Sprintf(" [files: %s]", strings.Join(ans.FileIDs, ", "))
			}
			fmt.Fprintln(a.out, line)
		}
	}

	files, err := a.fileService.List(ctx, s.ID)
	if err != nil {
		return err
	}
	if len(files) > 0 {
		fmt.Fprintln(a.out, "Files:")
		return a.printFiles(files)
	}
	return nil
}

func formatOptTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(shortTime)
}

func (a *App) Retry(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage("retry <subID>")
	}
	if _, err := a.submissionService.Retry(ctx, args[0]); err != nil {
		return err
	}
	printlnFn("Submission queued again")
	return nil
}

func (a *App) Delete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage("delete <subID>")
	}

	ok, err := GetConfirmation(a.reader, fmt.Sprintf("Delete submission %s and its files?", args[0]), a.out)
	if err != nil {
		return err
	}
	if !ok {
		printlnFn("Cancelled")
		return nil
	}

	if err := a.submissionService.Delete(ctx, args[0]); err != nil {
		return err
	}
	printlnFn("Submission deleted")
	return nil
}

func (a *App) Export(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage("export <subID>")
	}
	path, err := a.exportService.Export(ctx, args[0])
	if err != nil {
		return err
	}
	printlnFn("Exported to", path)
	return nil
}
