// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package base

import (
	"fmt"
	"net"
	"net/netip"
	"regexp"
	"strings"
)

// HostPolicy configures which database hosts the gateway may open pools to.
type HostPolicy struct {
	// AllowPrivateIPs permits hosts on private or internal addresses. IBM i
	// partitions usually sit on private networks, so gateways deployed next
	// to them enable this. DNS is not consulted when it is set.
	AllowPrivateIPs bool
	// AllowedHostSuffixes restricts hosts to domain suffixes such as ".corp.example.com"
	AllowedHostSuffixes []string
	// AllowedHosts restricts hosts to exact hostnames or IPs
	AllowedHosts []string
	// BlockedHosts rejects hostnames and their subdomains
	BlockedHosts []string
}

// hostCharset is what a hostname, IPv4 or bracket-less IPv6 literal may contain.
// Anything else (slashes, '@', '?', whitespace) could smuggle DSN options.
var hostCharset = regexp.MustCompile(`^[A-Za-z0-9.\-:_]+$`)

// lookupIP is replaced in tests.
var lookupIP = net.LookupIP

// ValidateHost checks a target host, with optional port, before any
// credentials are sent to it. Blocklist, then allowlist, then the private
// address check.
func ValidateHost(host string, policy HostPolicy) error {
	if strings.TrimSpace(host) == "" {
		return fmt.Errorf("host cannot be empty")
	}

	hostname := host
	if h, _, err := net.SplitHostPort(host); err == nil {
		hostname = h
	}
	if hostname == "" {
		return fmt.Errorf("host must contain a hostname")
	}
	if !hostCharset.MatchString(hostname) {
		return fmt.Errorf("host %q contains invalid characters", SanitizeLogString(hostname))
	}
	hostname = strings.ToLower(hostname)

	if matchesDomain(hostname, policy.BlockedHosts) {
		return fmt.Errorf("hostname %q is blocked", hostname)
	}
	if len(policy.AllowedHosts) > 0 || len(policy.AllowedHostSuffixes) > 0 {
		if !inAllowlist(hostname, policy.AllowedHosts, policy.AllowedHostSuffixes) {
			return fmt.Errorf("hostname %q is not in the allowed list", hostname)
		}
	}
	if policy.AllowPrivateIPs {
		return nil
	}

	if addr, err := netip.ParseAddr(hostname); err == nil {
		if isInternalAddr(addr) {
			return fmt.Errorf("connection to private/internal IP %s is not allowed", addr)
		}
		return nil
	}

	ips, err := lookupIP(hostname)
	if err != nil {
		return fmt.Errorf("failed to resolve hostname %q: %w", hostname, err)
	}
	for _, ip := range ips {
		addr, ok := netip.AddrFromSlice(ip)
		if !ok || isInternalAddr(addr) {
			return fmt.Errorf("hostname %s resolves to private/internal IP %s", hostname, ip)
		}
	}
	return nil
}

// internalPrefixes are IPv4 ranges that netip's classifiers do not cover
// but which never belong to a routable IBM i host.
var internalPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("192.0.2.0/24"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("198.51.100.0/24"),
	netip.MustParsePrefix("203.0.113.0/24"),
	netip.MustParsePrefix("240.0.0.0/4"),
}

// isInternalAddr reports loopback, link-local, private, multicast,
// unspecified and reserved addresses.
func isInternalAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() || addr.IsMulticast() {
		return true
	}
	for _, p := range internalPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// matchesDomain reports whether hostname equals an entry or is a subdomain of it.
func matchesDomain(hostname string, domains []string) bool {
	for _, d := range domains {
		d = strings.ToLower(d)
		if hostname == d || strings.HasSuffix(hostname, "."+d) {
			return true
		}
	}
	return false
}

func inAllowlist(hostname string, hosts, suffixes []string) bool {
	for _, h := range hosts {
		if strings.EqualFold(h, hostname) {
			return true
		}
	}
	for _, s := range suffixes {
		if strings.HasSuffix(hostname, strings.ToLower(s)) {
			return true
		}
	}
	return false
}

var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// maxLogLength caps one sanitized value
const maxLogLength = 500

// SanitizeLogString escapes line breaks and strips ANSI sequences so that
// caller-supplied text cannot forge log lines. Long values are truncated.
func SanitizeLogString(s string) string {
	s = strings.NewReplacer("\n", `\n`, "\r", `\r`).Replace(s)
	s = ansiRegex.ReplaceAllString(s, "")
	if len(s) > maxLogLength {
		s = s[:maxLogLength] + "...[truncated]"
	}
	return s
}

var validIdentifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

var reservedWords = map[string]bool{
	"SELECT": true, "INSERT": true, "UPDATE": true, "DELETE": true, "DROP": true,
	"CREATE": true, "ALTER": true, "TABLE": true, "DATABASE": true, "FROM": true,
	"WHERE": true, "NULL": true, "UNION": true, "GRANT": true, "REVOKE": true,
	"TRUNCATE": true, "CALL": true, "MERGE": true, "VALUES": true, "WITH": true,
}

// ValidateSQLIdentifier checks that a configured database name can be placed
// into a DSN unquoted.
func ValidateSQLIdentifier(identifier string) error {
	if identifier == "" {
		return fmt.Errorf("identifier cannot be empty")
	}
	if !validIdentifier.MatchString(identifier) {
		return fmt.Errorf("invalid SQL identifier: %q", identifier)
	}
	if reservedWords[strings.ToUpper(identifier)] {
		return fmt.Errorf("identifier %q is a SQL reserved word", identifier)
	}
	return nil
}
