package daemon

import (
	"errors"
	"fmt"
	"net"

	"github.com/vishvananda/netlink"

	"firestige.xyz/woolong/internal/core"
)

// linkByName is replaced in tests.
var linkByName = netlink.LinkByName

// checkLink resolves name and requires it to be administratively up and not reported
// down by the driver. It returns the interface index.
func checkLink(name string) (int, error) {
	if name == "" {
		return 0, fmt.Errorf("%w: no interface given", core.ErrConfigInvalid)
	}
	link, err := linkByName(name)
	if err != nil {
		var notFound netlink.LinkNotFoundError
		if errors.As(err, &notFound) {
			return 0, fmt.Errorf("%w: %s", core.ErrInterfaceNotFound, name)
		}
		return 0, fmt.Errorf("lookup interface %s: %w", name, err)
	}

	attrs := link.Attrs()
	if attrs.Flags&net.FlagUp == 0 {
		return 0, fmt.Errorf("%w: %s is administratively down", core.ErrInterfaceDown, name)
	}
	switch attrs.OperState {
	case netlink.OperDown, netlink.OperLowerLayerDown, netlink.OperNotPresent:
		return 0, fmt.Errorf("%w: %s operstate %s", core.ErrInterfaceDown, name, attrs.OperState)
	}
	return attrs.Index, nil
}
