package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/inspectsync/internal/client/models"
)

func (a *App) Forms(ctx context.Context, _ []string) error {
	list, err := a.catalogService.ListForms(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		printlnFn("No forms cached. Run 'catalog' while online.")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tVERSION\tQUESTIONS")
	for _, f := range list {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", f.ID, f.Name, f.Version, f.QuestionCount())
	}
	return tw.Flush()
}

func (a *App) Form(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage("form <id>")
	}
	f, err := a.catalogService.GetForm(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%s (v%d)\n", f.Name, f.Version)
	if f.Description != "" {
		fmt.Fprintln(a.out, f.Description)
	}
	for _, s := range f.Steps {
		fmt.Fprintf(a.out, "\nStep %d: %s [%s]\n", s.StepNumber, s.Title, s.ID)
		for _, q := range s.Questions {
			req := ""
			if q.IsRequired {
				req = " *"
			}
			fmt.Fprintf(a.out, "  %s  %s (%s)%s\n", q.ID, q.QuestionText, q.Type, req)
			if len(q.Options) > 0 {
				fmt.Fprintf(a.out, "      options: %s\n", strings.Join(q.Options, ", "))
			}
		}
	}
	return nil
}

func (a *App) Sites(ctx context.Context, _ []string) error {
	list, err := a.catalogService.ListSites(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		printlnFn("No sites cached.")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tNAME\tADDRESS")
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Code, s.Name, s.Address)
	}
	return tw.Flush()
}

func (a *App) Site(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage("site <code>")
	}
	s, err := a.catalogService.FindSite(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s %s\n%s (%.6f, %.6f)\n", s.Code, s.Name, s.Address, s.Latitude, s.Longitude)

	for _, kind := range []models.InventoryKind{models.InventoryElectrical, models.InventoryPassive} {
		items, err := a.catalogService.Inventory(ctx, s.ID, kind)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			continue
		}
		fmt.Fprintf(a.out, "\nInventory %s:\n", kind)
		tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		for _, it := range items {
			fmt.Fprintf(tw, "  %s\t%s\t%s\tx%d\n", it.Name, it.Model, it.SerialNumber, it.Quantity)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}
