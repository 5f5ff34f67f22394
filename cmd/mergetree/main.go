// Command mergetree is a small introspection tool over the merge planner:
// it can run the selector against a synthetic part set and print what it
// would choose, or drive a full select-and-execute cycle end to end. It is
// grounded on tool/tool.go's cobra-based subcommand layout.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/foldedb/mergetree"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mergetree",
		Short: "Inspect and exercise the merge planner against a synthetic part set.",
	}
	var (
		partCount int
		seed      int64
	)
	root.PersistentFlags().IntVar(&partCount, "parts", 32, "number of synthetic parts to generate")
	root.PersistentFlags().Int64Var(&seed, "seed", 1, "random seed for synthetic part generation")

	root.AddCommand(newSelectCmd(&partCount, &seed))
	root.AddCommand(newMergeCmd(&partCount, &seed))
	return root
}

func syntheticParts(n int, seed int64) []*mergetree.Part {
	rng := rand.New(rand.NewSource(seed))
	now := time.Now()
	parts := make([]*mergetree.Part, 0, n)
	var left uint64
	day := mergetree.DayNum(now.Unix() / 86400)
	month := mergetree.DayNum(day - day%30)
	for i := 0; i < n; i++ {
		size := uint64(1 + rng.Intn(500))
		right := left + size
		p := &mergetree.Part{
			Name:       fmt.Sprintf("synthetic_%d_%d_%d", day, left, right),
			LeftMonth:  month,
			RightMonth: month,
			KeyRange:   mergetree.KeyRange{Left: left, Right: right},
			DateRange:  mergetree.DateRange{MinDate: day, MaxDate: day},
			Size:       size,
			SizeBytes:  size * 128,
			Level:      0,
			ModTime:    now.Add(-time.Duration(rng.Intn(72)) * time.Hour),
		}
		parts = append(parts, p)
		left = right
	}
	return parts
}

func newSelectCmd(partCount *int, seed *int64) *cobra.Command {
	return &cobra.Command{
		Use:   "select",
		Short: "Print the run the selector would choose from a synthetic part set.",
		RunE: func(cmd *cobra.Command, args []string) error {
			parts := syntheticParts(*partCount, *seed)
			sel := mergetree.NewSelector(mergetree.Settings{})
			run, ok := sel.SelectPartsToMerge(parts, mergetree.SelectOptions{
				AvailableDiskBytes: 1 << 40,
			})
			if !ok {
				fmt.Println("no run selected")
				return nil
			}
			printParts(run)
			return nil
		},
	}
}

func newMergeCmd(partCount *int, seed *int64) *cobra.Command {
	return &cobra.Command{
		Use:   "merge",
		Short: "Select and execute one merge against a synthetic part set, then print the result.",
		RunE: func(cmd *cobra.Command, args []string) error {
			parts := syntheticParts(*partCount, *seed)
			set := mergetree.NewPartSet()
			set.Add(parts...)

			store := mergetree.NewPartStore()
			rng := rand.New(rand.NewSource(*seed))
			for _, p := range parts {
				rows := make([]mergetree.Row, p.Size)
				for i := range rows {
					rows[i] = mergetree.Row{Key: p.Left + uint64(i), Sign: 1, Numeric: map[string]float64{"value": rng.Float64()}}
				}
				if _, err := store.PutRows(p.Name, rows); err != nil {
					return err
				}
			}

			sel := mergetree.NewSelector(mergetree.Settings{})
			run, ok := sel.SelectPartsToMerge(set.Snapshot(), mergetree.SelectOptions{
				AvailableDiskBytes: 1 << 40,
			})
			if !ok {
				fmt.Println("no run selected")
				return nil
			}

			exec := mergetree.NewExecutor(mergetree.TableOptions{Mode: mergetree.Summing}, store, nil)
			result, err := exec.Execute(context.Background(), set, run, nil)
			if err != nil {
				return err
			}
			if !result.Merged {
				fmt.Println("merge produced no output")
				return nil
			}
			printParts([]*mergetree.Part{result.Output})
			return nil
		},
	}
}

func printParts(parts []*mergetree.Part) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"name", "level", "marks", "bytes"})
	for _, p := range parts {
		table.Append([]string{
			p.Name,
			fmt.Sprintf("%d", p.Level),
			fmt.Sprintf("%d", p.Size),
			fmt.Sprintf("%d", p.SizeBytes),
		})
	}
	table.Render()
}
