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

package validator

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Normalize prepares a statement for validation. It removes a leading byte
// order mark and surrounding whitespace, and rejects text that is not valid
// UTF-8 or that carries control characters other than tab, newline,
// carriage return, vertical tab and form feed. Case and interior text are
// left untouched.
func Normalize(statement string) (string, error) {
	if !utf8.ValidString(statement) {
		return "", fmt.Errorf("statement is not valid UTF-8")
	}
	s := strings.TrimPrefix(statement, "\ufeff")
	for i, r := range s {
		switch r {
		case '\t', '\n', '\r', '\v', '\f':
			continue
		}
		if unicode.IsControl(r) {
			return "", fmt.Errorf("control character %U at offset %d", r, i)
		}
	}
	return strings.TrimFunc(s, unicode.IsSpace), nil
}
