package reportapi

import (
	"testing"

	"foodwaste/testutil"
)

func TestReportAPIImportBoundaries(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.AnyOf(testutil.InternalImportForbidden, testutil.TransportImportForbidden),
		"report contracts are consumed by every adapter")
}
