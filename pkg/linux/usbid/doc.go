// Package usbid resolves USB vendor and product IDs to names using the
// usb.ids database shipped with most Linux distributions.
//
// Open searches [DefaultPaths] and returns the first database found:
//
//	db, err := usbid.Open()
//	if err == nil {
//		fmt.Println(db.Name(0x058f, 0x6387))
//	}
//
// A nil *DB is valid and resolves every ID to its hex form, so callers can
// treat a missing database as a soft failure.
package usbid
