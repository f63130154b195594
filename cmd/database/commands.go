package database

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/MatiasNAmendola/Nxdb/lib/db"
	"github.com/MatiasNAmendola/Nxdb/lib/store"
	"github.com/spf13/cobra"
)

var (
	createCmd = &cobra.Command{
		Use:   "create [name]",
		Short: "Creates a new empty database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			d, err := db.Create(engine, name, db.Options{})
			if err != nil {
				return err
			}
			if err := d.Dispose(); err != nil {
				return err
			}
			fmt.Printf("created database %q\n", name)
			return nil
		},
	}
	dropCmd = &cobra.Command{
		Use:   "drop [name]",
		Short: "Deletes a database and its on-disk file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if err := db.Drop(engine, name); err != nil {
				return err
			}
			fmt.Printf("dropped database %q\n", name)
			return nil
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info [name]",
		Short: "Prints statistics about a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(args[0], func(d *db.Database) error {
				info, err := d.GetInfo()
				if err != nil {
					return err
				}
				out, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			})
		},
	}
	appendCmd = &cobra.Command{
		Use:   "append [name] [kind] [value]",
		Short: "Appends a node to the end of a database",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[1])
			if err != nil {
				return err
			}
			return withDatabase(args[0], func(d *db.Database) error {
				size, err := d.Size()
				if err != nil {
					return err
				}
				op := store.Op{
					Type: store.OpInsert,
					Pos:  size,
					Rec:  store.Record{Kind: kind, Value: []byte(args[2])},
				}
				if err := d.Update([]store.Op{op}); err != nil {
					return err
				}
				n, err := d.NodeAt(size)
				if err != nil {
					return err
				}
				fmt.Printf("appended %s\n", n)
				return nil
			})
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [name] [pos]",
		Short: "Reads the node at a position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("pos must be a number: %w", err)
			}
			return withDatabase(args[0], func(d *db.Database) error {
				n, err := d.NodeAt(pos)
				if err != nil {
					return err
				}
				value, err := n.Value()
				if err != nil {
					return err
				}
				fmt.Printf("%s value=%q\n", n, value)
				return nil
			})
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [name] [pos]",
		Short: "Deletes the node at a position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("pos must be a number: %w", err)
			}
			return withDatabase(args[0], func(d *db.Database) error {
				if err := d.Update([]store.Op{{Type: store.OpDelete, Pos: pos}}); err != nil {
					return err
				}
				fmt.Println("deleted successfully")
				return nil
			})
		},
	}
)

// withDatabase opens a database, runs fn and disposes again. Disposing
// flushes persisted engines, so mutations made by fn survive the process.
func withDatabase(name string, fn func(d *db.Database) error) error {
	d, err := db.Open(engine, name, db.Options{})
	if err != nil {
		return err
	}
	if err := fn(d); err != nil {
		_ = d.Dispose()
		return err
	}
	return d.Dispose()
}

// parseKind converts a command-line kind name to a store.Kind
func parseKind(s string) (store.Kind, error) {
	switch strings.ToLower(s) {
	case "document":
		return store.KindDocument, nil
	case "element":
		return store.KindElement, nil
	case "attribute":
		return store.KindAttribute, nil
	case "text":
		return store.KindText, nil
	case "comment":
		return store.KindComment, nil
	case "pi":
		return store.KindPI, nil
	default:
		return 0, fmt.Errorf("invalid kind %s (must be one of document, element, attribute, text, comment, pi)", s)
	}
}
