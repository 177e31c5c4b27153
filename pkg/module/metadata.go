// SPDX-License-Identifier: MPL-2.0

package module

import (
	_ "embed"
	"fmt"

	"github.com/google/uuid"

	"github.com/moduni/moduni/pkg/cueutil"
	"github.com/moduni/moduni/pkg/version"
)

// MetadataFile is the name of the metadata document at the root of every
// module repository.
const MetadataFile = ".moduni.cue"

//go:embed metadata_schema.cue
var metadataSchemaSrc []byte

var metadataSchema = cueutil.MustCompile(metadataSchemaSrc, "#Metadata")

type (
	metadataFile struct {
		UUID          string               `json:"uuid"`
		Name          string               `json:"name"`
		Path          string               `json:"path"`
		Description   string               `json:"description"`
		MaturityLevel int                  `json:"maturity_level"`
		Tags          []metadataTag        `json:"tags"`
		Dependencies  []metadataDependency `json:"dependencies"`
	}

	metadataTag struct {
		Name  string `json:"name"`
		Color string `json:"color"`
	}

	metadataDependency struct {
		ModuleID       string `json:"module_id"`
		MinimumVersion string `json:"minimum_version"`
		MaximumVersion string `json:"maximum_version,omitempty"`
		Relationship   string `json:"relationship"`
	}
)

// EncodeMetadata renders the metadata document of module id at snapshot s.
// The rendered document is checked against the metadata schema, so a
// snapshot that DecodeMetadata would reject is never written.
func EncodeMetadata(id uuid.UUID, s *Snapshot) ([]byte, error) {
	doc := metadataFile{
		UUID:          id.String(),
		Name:          s.Name,
		Path:          s.Path,
		Description:   s.Description,
		MaturityLevel: ClampMaturity(s.MaturityLevel),
		Tags:          make([]metadataTag, 0, len(s.Tags)),
		Dependencies:  make([]metadataDependency, 0, len(s.Dependencies)),
	}
	for _, t := range s.Tags {
		doc.Tags = append(doc.Tags, metadataTag(t))
	}
	for _, d := range s.Dependencies {
		md := metadataDependency{
			ModuleID:       d.ModuleID.String(),
			MinimumVersion: d.MinimumVersion.String(),
			Relationship:   d.Relationship.String(),
		}
		if !d.MaximumVersion.IsZero() {
			md.MaximumVersion = d.MaximumVersion.String()
		}
		doc.Dependencies = append(doc.Dependencies, md)
	}
	out, err := cueutil.Encode(doc)
	if err != nil {
		return nil, err
	}
	if _, err := cueutil.Decode[metadataFile](metadataSchema, out, cueutil.WithFilename(MetadataFile)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMetadata, err)
	}
	return out, nil
}

// DecodeMetadata parses a metadata document, returning the module ID it
// records and its snapshot.
func DecodeMetadata(data []byte) (uuid.UUID, *Snapshot, error) {
	doc, err := cueutil.Decode[metadataFile](metadataSchema, data, cueutil.WithFilename(MetadataFile))
	if err != nil {
		return uuid.Nil, nil, err
	}

	id, err := uuid.Parse(doc.UUID)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("%s: uuid: %w", MetadataFile, err)
	}

	s := &Snapshot{
		Name:          doc.Name,
		Description:   doc.Description,
		MaturityLevel: ClampMaturity(doc.MaturityLevel),
		Path:          doc.Path,
	}
	for _, t := range doc.Tags {
		s.Tags = append(s.Tags, Tag(t))
	}
	for i, md := range doc.Dependencies {
		dep, err := decodeDependency(md)
		if err != nil {
			return uuid.Nil, nil, fmt.Errorf("%s: dependencies[%d]: %w", MetadataFile, i, err)
		}
		s.Dependencies = append(s.Dependencies, dep)
	}
	return id, s, nil
}

func decodeDependency(md metadataDependency) (Dependency, error) {
	id, err := uuid.Parse(md.ModuleID)
	if err != nil {
		return Dependency{}, err
	}
	minimum, err := version.Parse(md.MinimumVersion)
	if err != nil {
		return Dependency{}, err
	}
	rel, err := ParseRelationship(md.Relationship)
	if err != nil {
		return Dependency{}, err
	}
	dep := Dependency{ModuleID: id, MinimumVersion: minimum, Relationship: rel}
	if md.MaximumVersion != "" {
		if dep.MaximumVersion, err = version.Parse(md.MaximumVersion); err != nil {
			return Dependency{}, err
		}
	}
	return dep, nil
}
