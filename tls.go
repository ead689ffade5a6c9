// SPDX-FileCopyrightText: The go-submit Authors
//
// SPDX-License-Identifier: MIT

package submit

// TLSPolicy describes an int alias for the transport security policies we
// allow: automatic, explicitly on, explicitly off.
type TLSPolicy int

const (
	// TLSAuto leaves the decision to the client: transport security is
	// enabled when a TLS implementation is available, no port has been
	// forced and the target is not the local host.
	TLSAuto TLSPolicy = iota

	// TLSAlways forces an encrypted connection.
	TLSAlways

	// NoTLS forces the connection to stay unencrypted.
	NoTLS
)

// String is a standard method to convert a TLSPolicy into a printable format.
func (p TLSPolicy) String() string {
	switch p {
	case TLSAuto:
		return "TLSAuto"
	case TLSAlways:
		return "TLSAlways"
	case NoTLS:
		return "NoTLS"
	default:
		return "UnknownPolicy"
	}
}

const (
	// DefaultPort is the default connection port to the SMTP server.
	DefaultPort = 25

	// DefaultPortSSL is the default connection port for implicit SSL/TLS to
	// the SMTP server.
	DefaultPortSSL = 465
)

// decideTransportSecurity settles the initial channel security before any
// I/O takes place. The rules apply in order: an explicit policy always wins;
// otherwise port 465 implies implicit TLS by convention; otherwise TLS is
// used opportunistically when an implementation is at hand, no port was
// forced and the target host is not "localhost". When no port was forced,
// the returned port defaults to 465 for an encrypted and 25 for a plaintext
// connection. A plaintext decision must be applied to the dialer explicitly
// rather than relied upon as a default.
func decideTransportSecurity(policy TLSPolicy, port int, host string, hasTLS bool) (useTLS bool, resolvedPort int) {
	switch {
	case policy == TLSAlways:
		useTLS = true
	case policy == NoTLS:
		useTLS = false
	case port == DefaultPortSSL:
		useTLS = true
	default:
		useTLS = hasTLS && port == 0 && host != "localhost"
	}
	if port == 0 {
		port = DefaultPort
		if useTLS {
			port = DefaultPortSSL
		}
	}
	return useTLS, port
}
