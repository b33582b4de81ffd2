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

package catalog

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
)

// Store holds the active catalog. Loads and swaps are atomic, so a
// validation that has loaded a catalog keeps using it even if a reload
// replaces it mid-flight.
type Store struct {
	current atomic.Pointer[Catalog]
}

// NewStore creates a store holding c, or the default catalog if c is nil.
func NewStore(c *Catalog) *Store {
	if c == nil {
		c = Default()
	}
	s := &Store{}
	s.current.Store(c)
	return s
}

// Load returns the active catalog.
func (s *Store) Load() *Catalog {
	return s.current.Load()
}

// Swap installs c and returns the previous catalog. A nil c is ignored.
func (s *Store) Swap(c *Catalog) *Catalog {
	if c == nil {
		return s.current.Load()
	}
	return s.current.Swap(c)
}

// Source supplies raw catalog bytes.
type Source interface {
	// Name identifies the source in logs and metrics.
	Name() string

	// Fetch returns the current catalog file contents.
	Fetch(ctx context.Context) ([]byte, error)
}

// FileSource reads a catalog from the local filesystem.
type FileSource struct {
	path string
}

// NewFileSource creates a source for the file at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Name returns "file:<path>".
func (s *FileSource) Name() string {
	return "file:" + s.path
}

// Fetch reads the file.
func (s *FileSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", s.path, err)
	}
	return data, nil
}

// EmbeddedSource serves the embedded default catalog.
type EmbeddedSource struct{}

// Name returns "embedded".
func (EmbeddedSource) Name() string {
	return "embedded"
}

// Fetch returns the embedded default catalog file.
func (EmbeddedSource) Fetch(context.Context) ([]byte, error) {
	return DefaultYAML(), nil
}
