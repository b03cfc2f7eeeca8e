package blob

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Open constructs the artifact store selected by INNOZONE_BLOB_DRIVER.
// Recognized drivers are "fs" (default), "s3" and "memory". The filesystem
// driver roots itself at INNOZONE_BLOB_FS_ROOT when set.
func Open(ctx context.Context) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(os.Getenv("INNOZONE_BLOB_DRIVER")))
	switch Driver(driver) {
	case DriverFilesystem, "":
		return NewFilesystem(os.Getenv("INNOZONE_BLOB_FS_ROOT"))
	case DriverS3:
		return OpenS3FromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown artifact store driver %q", driver)
	}
}
