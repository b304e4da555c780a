// Command recidx is the driver for the B+ tree record store: one
// subcommand per engine operation, a Graphviz dump of the tree, and a
// benchmark suite that compares the engine against Pebble and LevelDB.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/record-index/recidx/bptree"
	"github.com/record-index/recidx/index"
)

var dbPath string

func main() {
	root := &cobra.Command{
		Use:          "recidx",
		Short:        "Disk-resident B+ tree record store",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&dbPath, "db", "recidx.dat", "index file path")
	root.AddCommand(putCmd(), getCmd(), delCmd(), scanCmd(), dumpCmd(), benchCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func parseKey(s string) (int32, error) {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("bad key %q: %w", s, err)
	}
	return int32(v), nil
}

// recordText strips the zero padding for display.
func recordText(rec []byte) string {
	return strings.TrimRight(string(rec), "\x00")
}

func putCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put <key> <text>",
		Short: "Insert or update the record for a key (text is padded to 100 bytes)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args[0])
			if err != nil {
				return err
			}
			t, err := bptree.Open(dbPath)
			if err != nil {
				return err
			}
			defer t.Close()
			return t.Write(key, index.PadRecord([]byte(args[1])))
		},
	}
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print the record for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args[0])
			if err != nil {
				return err
			}
			t, err := bptree.Open(dbPath)
			if err != nil {
				return err
			}
			defer t.Close()
			rec, err := t.Read(key)
			if err != nil {
				return err
			}
			if rec == nil {
				fmt.Println("not found")
				return nil
			}
			fmt.Println(recordText(rec))
			return nil
		},
	}
}

func delCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "del <key>",
		Short: "Remove the record for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args[0])
			if err != nil {
				return err
			}
			t, err := bptree.Open(dbPath)
			if err != nil {
				return err
			}
			defer t.Close()
			removed, err := t.Delete(key)
			if err != nil {
				return err
			}
			if removed {
				fmt.Println("deleted")
			} else {
				fmt.Println("not found")
			}
			return nil
		},
	}
}

func scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan <low> <high>",
		Short: "Print all records with keys in [low, high], ascending",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			low, err := parseKey(args[0])
			if err != nil {
				return err
			}
			high, err := parseKey(args[1])
			if err != nil {
				return err
			}
			t, err := bptree.Open(dbPath)
			if err != nil {
				return err
			}
			defer t.Close()
			it, err := t.Range(low, high)
			if err != nil {
				return err
			}
			defer it.Close()
			for it.Next() {
				fmt.Printf("%d\t%s\n", it.Key(), recordText(it.Value()))
			}
			return it.Error()
		},
	}
}

func dumpCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Write a Graphviz DOT rendering of the tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := bptree.Open(dbPath)
			if err != nil {
				return err
			}
			defer t.Close()
			w := os.Stdout
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return t.ExportDOT(w)
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output file (default stdout)")
	return cmd
}
