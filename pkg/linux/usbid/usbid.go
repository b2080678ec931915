package usbid

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
)

// DefaultPaths lists the standard locations for the USB ID database.
var DefaultPaths = []string{
	"/usr/share/hwdata/usb.ids",
	"/var/lib/usbutils/usb.ids",
	"/usr/share/misc/usb.ids",
}

// ErrNotFound indicates none of the searched paths held a database.
var ErrNotFound = errors.New("usb.ids database not found")

// DB maps vendor and product IDs to names. A DB is immutable once parsed
// and safe for concurrent use.
type DB struct {
	vendors  map[uint16]string
	products map[uint32]string // vid<<16 | pid
}

// Open parses the first readable database among paths, or DefaultPaths
// when none are given.
func Open(paths ...string) (*DB, error) {
	if len(paths) == 0 {
		paths = DefaultPaths
	}
	for _, path := range paths {
		f, err := os.Open(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		db, err := Parse(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return db, nil
	}
	return nil, ErrNotFound
}

// Parse reads a database in usb.ids format.
//
// Vendor lines are "vvvv  name"; product lines under a vendor are
// "\tpppp  name". Any other unindented line (device classes, language
// tables) ends the current vendor block.
func Parse(r io.Reader) (*DB, error) {
	db := &DB{
		vendors:  make(map[uint16]string),
		products: make(map[uint32]string),
	}

	var vid uint16
	inVendor := false

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || line[0] == '#' {
			continue
		}

		if line[0] == '\t' {
			if !inVendor || strings.HasPrefix(line, "\t\t") {
				continue
			}
			pid, name, ok := splitEntry(line[1:])
			if ok {
				db.products[key(vid, pid)] = name
			}
			continue
		}

		id, name, ok := splitEntry(line)
		inVendor = ok
		if ok {
			vid = id
			db.vendors[vid] = name
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return db, nil
}

// splitEntry parses "xxxx  name".
func splitEntry(s string) (uint16, string, bool) {
	if len(s) < 6 || s[4] != ' ' {
		return 0, "", false
	}
	id, err := strconv.ParseUint(s[:4], 16, 16)
	if err != nil {
		return 0, "", false
	}
	name := strings.TrimSpace(s[5:])
	if name == "" {
		return 0, "", false
	}
	return uint16(id), name, true
}

func key(vid, pid uint16) uint32 {
	return uint32(vid)<<16 | uint32(pid)
}

// Vendor returns the vendor name, or "" if unknown.
func (db *DB) Vendor(vid uint16) string {
	if db == nil {
		return ""
	}
	return db.vendors[vid]
}

// Product returns the product name, or "" if unknown.
func (db *DB) Product(vid, pid uint16) string {
	if db == nil {
		return ""
	}
	return db.products[key(vid, pid)]
}

// Name describes a device as "vendor product", falling back to the
// "vvvv:pppp" form for whichever part is unknown.
func (db *DB) Name(vid, pid uint16) string {
	vendor := db.Vendor(vid)
	product := db.Product(vid, pid)
	switch {
	case vendor != "" && product != "":
		return vendor + " " + product
	case vendor != "":
		return fmt.Sprintf("%s %04x", vendor, pid)
	default:
		return fmt.Sprintf("%04x:%04x", vid, pid)
	}
}

// Len returns the number of vendors and products known.
func (db *DB) Len() (vendors, products int) {
	if db == nil {
		return 0, 0
	}
	return len(db.vendors), len(db.products)
}
