// ABOUTME: Stable YAML serialization of wiring diagrams into three documents
// ABOUTME: Lists are sorted by id and mapping keys sorted so identical graphs emit identical bytes

package services

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/blang/semver/v4"
	"github.com/markalston/fabric-planner/backend/models"
	"gopkg.in/yaml.v3"
)

// FormatVersion is written into every document's metadata block
const FormatVersion = "1.0.0"

// ErrIncompatibleFormat is returned when a document's format version has a
// different major version than FormatVersion
var ErrIncompatibleFormat = errors.New("incompatible wiring document format")

// Document kinds
const (
	DocumentSwitches    = "switches"
	DocumentServers     = "servers"
	DocumentConnections = "connections"
)

// Documents holds the three serialized wiring documents
type Documents struct {
	Switches    []byte
	Servers     []byte
	Connections []byte
}

// Bundle joins the documents into one multi-document YAML stream
func (d Documents) Bundle() []byte {
	return bytes.Join([][]byte{d.Switches, d.Servers, d.Connections}, []byte("---\n"))
}

// ByName returns the documents keyed by kind
func (d Documents) ByName() map[string][]byte {
	return map[string][]byte{
		DocumentSwitches:    d.Switches,
		DocumentServers:     d.Servers,
		DocumentConnections: d.Connections,
	}
}

type documentMetadata struct {
	Kind            string `yaml:"kind"`
	FormatVersion   string `yaml:"formatVersion"`
	FabricName      string `yaml:"fabricName"`
	GeneratedAt     string `yaml:"generatedAt"`
	SpineCount      int    `yaml:"spineCount"`
	LeafCount       int    `yaml:"leafCount"`
	ServerCount     int    `yaml:"serverCount"`
	ConnectionCount int    `yaml:"connectionCount"`
}

type switchesDocument struct {
	Metadata documentMetadata      `yaml:"metadata"`
	Switches []models.WiringDevice `yaml:"switches"`
}

type serversDocument struct {
	Metadata documentMetadata      `yaml:"metadata"`
	Servers  []models.WiringDevice `yaml:"servers"`
}

type connectionsDocument struct {
	Metadata    documentMetadata          `yaml:"metadata"`
	Connections []models.WiringConnection `yaml:"connections"`
}

// EmitYAML serializes a wiring diagram. The input is not modified; lists are
// sorted on copies immediately before encoding.
func EmitYAML(w *models.Wiring) (Documents, error) {
	if w == nil {
		return Documents{}, errors.New("cannot serialize nil wiring")
	}

	switches := sortedDevices(append(append([]models.WiringDevice{}, w.Spines...), w.Leaves...))
	servers := sortedDevices(append([]models.WiringDevice{}, w.Servers...))
	conns := append([]models.WiringConnection{}, w.Connections...)
	sort.SliceStable(conns, func(i, j int) bool { return conns[i].ID < conns[j].ID })

	meta := func(kind string) documentMetadata {
		return documentMetadata{
			Kind:            kind,
			FormatVersion:   FormatVersion,
			FabricName:      w.Metadata.FabricName,
			GeneratedAt:     w.Metadata.GeneratedAt.UTC().Format(time.RFC3339Nano),
			SpineCount:      len(w.Spines),
			LeafCount:       len(w.Leaves),
			ServerCount:     len(w.Servers),
			ConnectionCount: len(conns),
		}
	}

	var docs Documents
	var err error
	if docs.Switches, err = encodeSorted(switchesDocument{Metadata: meta(DocumentSwitches), Switches: switches}); err != nil {
		return Documents{}, fmt.Errorf("failed to encode switches: %w", err)
	}
	if docs.Servers, err = encodeSorted(serversDocument{Metadata: meta(DocumentServers), Servers: servers}); err != nil {
		return Documents{}, fmt.Errorf("failed to encode servers: %w", err)
	}
	if docs.Connections, err = encodeSorted(connectionsDocument{Metadata: meta(DocumentConnections), Connections: conns}); err != nil {
		return Documents{}, fmt.Errorf("failed to encode connections: %w", err)
	}
	return docs, nil
}

// ParseDocuments reconstructs a wiring diagram from its three documents
func ParseDocuments(docs Documents) (*models.Wiring, error) {
	var sw switchesDocument
	if err := decodeDocument(docs.Switches, DocumentSwitches, &sw, &sw.Metadata); err != nil {
		return nil, err
	}
	var srv serversDocument
	if err := decodeDocument(docs.Servers, DocumentServers, &srv, &srv.Metadata); err != nil {
		return nil, err
	}
	var conns connectionsDocument
	if err := decodeDocument(docs.Connections, DocumentConnections, &conns, &conns.Metadata); err != nil {
		return nil, err
	}

	generatedAt, err := time.Parse(time.RFC3339Nano, sw.Metadata.GeneratedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid generatedAt %q: %w", sw.Metadata.GeneratedAt, err)
	}

	w := &models.Wiring{
		Spines:      []models.WiringDevice{},
		Leaves:      []models.WiringDevice{},
		Servers:     append([]models.WiringDevice{}, srv.Servers...),
		Connections: append([]models.WiringConnection{}, conns.Connections...),
	}
	for _, d := range sw.Switches {
		switch d.Role {
		case models.DeviceRoleSpine:
			w.Spines = append(w.Spines, d)
		case models.DeviceRoleLeaf:
			w.Leaves = append(w.Leaves, d)
		default:
			return nil, fmt.Errorf("switch %s has unexpected role %q", d.ID, d.Role)
		}
	}
	w.Metadata = models.WiringMetadata{
		FabricName:      sw.Metadata.FabricName,
		GeneratedAt:     generatedAt,
		SpineCount:      len(w.Spines),
		LeafCount:       len(w.Leaves),
		ServerCount:     len(w.Servers),
		ConnectionCount: len(w.Connections),
	}
	return w, nil
}

// CheckFormatVersion accepts any version with the same major as FormatVersion
func CheckFormatVersion(version string) error {
	got, err := semver.Parse(version)
	if err != nil {
		return fmt.Errorf("%w: invalid formatVersion %q", ErrIncompatibleFormat, version)
	}
	want := semver.MustParse(FormatVersion)
	if got.Major != want.Major {
		return fmt.Errorf("%w: formatVersion %s, supported %d.x", ErrIncompatibleFormat, got, want.Major)
	}
	return nil
}

func decodeDocument(data []byte, kind string, out any, meta *documentMetadata) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s document: %w", kind, err)
	}
	if meta.Kind != kind {
		return fmt.Errorf("expected %s document, got %q", kind, meta.Kind)
	}
	if err := CheckFormatVersion(meta.FormatVersion); err != nil {
		return fmt.Errorf("%s document: %w", kind, err)
	}
	return nil
}

func sortedDevices(devices []models.WiringDevice) []models.WiringDevice {
	sort.SliceStable(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })
	return devices
}

// encodeSorted encodes v with every mapping's keys in lexical order
func encodeSorted(v any) ([]byte, error) {
	var node yaml.Node
	if err := node.Encode(v); err != nil {
		return nil, err
	}
	sortMappingKeys(&node)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func sortMappingKeys(n *yaml.Node) {
	if n.Kind == yaml.MappingNode {
		pairs := make([][2]*yaml.Node, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			pairs = append(pairs, [2]*yaml.Node{n.Content[i], n.Content[i+1]})
		}
		sort.SliceStable(pairs, func(i, j int) bool { return pairs[i][0].Value < pairs[j][0].Value })
		n.Content = n.Content[:0]
		for _, p := range pairs {
			n.Content = append(n.Content, p[0], p[1])
		}
	}
	for _, c := range n.Content {
		sortMappingKeys(c)
	}
}
