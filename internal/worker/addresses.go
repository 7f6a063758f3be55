package worker

import "net"

// LocalAddresses lists the IPv4 addresses other devices on the LAN can reach,
// in interface order. Loopback is only returned when nothing else exists.
func LocalAddresses() []string {
	var addresses []string

	ifaces, err := net.Interfaces()
	if err == nil {
		for _, iface := range ifaces {
			if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
				continue
			}
			addrs, err := iface.Addrs()
			if err != nil {
				continue
			}
			for _, addr := range addrs {
				ipNet, ok := addr.(*net.IPNet)
				if !ok {
					continue
				}
				ip := ipNet.IP.To4()
				if ip == nil || ip.IsLoopback() || ip.IsLinkLocalUnicast() {
					continue
				}
				addresses = append(addresses, ip.String())
			}
		}
	}

	if len(addresses) == 0 {
		return []string{"127.0.0.1"}
	}
	return addresses
}
