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
	"io"
)

// MaxDocumentSize caps how much a document fetch will read from remote
// storage.
const MaxDocumentSize = 4 << 20

// ReadDocument reads r up to MaxDocumentSize bytes. A larger body is an
// error rather than a silent truncation.
func ReadDocument(connectorName string, r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxDocumentSize+1))
	if err != nil {
		return nil, NewConnectorError(connectorName, "Fetch", "failed to read object content", err)
	}
	if len(data) > MaxDocumentSize {
		return nil, NewConnectorError(connectorName, "Fetch",
			fmt.Sprintf("object exceeds %d bytes", MaxDocumentSize), nil)
	}
	return data, nil
}
