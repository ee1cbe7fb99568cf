//go:build !anc350

package attocube

import "github.com/spmlab/goinst/instrerr"

// SystemGateway requires the vendor control library; without the anc350
// build tag there is nothing to return.
func SystemGateway() (Gateway, error) {
	return nil, instrerr.New(instrerr.UnsupportedOperation,
		"anc350.SystemGateway: built without the anc350 tag, no vendor library linked")
}
