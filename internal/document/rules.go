package document

import (
	"encoding/json"
	"fmt"
)

// --- Relations ---

type RelationType string

const (
	RelationAttach     RelationType = "attach"
	RelationAlign      RelationType = "align"
	RelationFollowPath RelationType = "followPath"
	RelationRepeat     RelationType = "repeat"
)

// RelationMeta is shared by every relation.
type RelationMeta struct {
	ID      string `json:"id"`
	Enabled bool   `json:"enabled"`
}

// Meta returns the shared fields.
func (m RelationMeta) Meta() RelationMeta { return m }

// Relation is a constraint applied to object transforms. The set of
// implementations is closed; UnknownRelation carries tags this build does
// not implement.
type Relation interface {
	RelationType() RelationType
	Meta() RelationMeta
}

// AttachRelation parents Child to Parent with an offset.
type AttachRelation struct {
	RelationMeta
	Parent          string `json:"parent"`
	Child           string `json:"child"`
	Offset          *Param `json:"offset,omitempty"`
	InheritRotation bool   `json:"inheritRotation"`
	InheritScale    bool   `json:"inheritScale"`
}

type Anchor string

const (
	AnchorCenter  Anchor = "center"
	AnchorTopLeft Anchor = "topLeft"
)

// AlignRelation moves A so that its anchor matches B's.
type AlignRelation struct {
	RelationMeta
	A      string `json:"a"`
	B      string `json:"b"`
	Anchor Anchor `json:"anchor,omitempty"`
}

// FollowPathRelation places Object at parameter U along Path.
type FollowPathRelation struct {
	RelationMeta
	Object       string `json:"object"`
	Path         string `json:"path"`
	U            Param  `json:"u"`
	TangentAlign bool   `json:"tangentAlign"`
}

// RepeatRelation clones Object Count-1 times, chaining Delta.
type RepeatRelation struct {
	RelationMeta
	Object string        `json:"object"`
	Count  int           `json:"count"`
	Delta  TransformSpec `json:"deltaTransform"`
}

// UnknownRelation is a relation whose type is not implemented.
type UnknownRelation struct {
	RelationMeta
	Type string
	Raw  json.RawMessage
}

func (AttachRelation) RelationType() RelationType     { return RelationAttach }
func (AlignRelation) RelationType() RelationType      { return RelationAlign }
func (FollowPathRelation) RelationType() RelationType { return RelationFollowPath }
func (RepeatRelation) RelationType() RelationType     { return RelationRepeat }
func (r UnknownRelation) RelationType() RelationType  { return RelationType(r.Type) }

func (r AttachRelation) MarshalJSON() ([]byte, error) {
	type plain AttachRelation
	return marshalTagged(string(RelationAttach), plain(r))
}

func (r AlignRelation) MarshalJSON() ([]byte, error) {
	type plain AlignRelation
	return marshalTagged(string(RelationAlign), plain(r))
}

func (r FollowPathRelation) MarshalJSON() ([]byte, error) {
	type plain FollowPathRelation
	return marshalTagged(string(RelationFollowPath), plain(r))
}

func (r RepeatRelation) MarshalJSON() ([]byte, error) {
	type plain RepeatRelation
	return marshalTagged(string(RelationRepeat), plain(r))
}

func (r UnknownRelation) MarshalJSON() ([]byte, error) { return r.Raw, nil }

// DecodeRelation decodes a tagged relation. Enabled defaults to true.
func DecodeRelation(raw json.RawMessage) (Relation, error) {
	typ, err := peekType(raw)
	if err != nil {
		return nil, fmt.Errorf("relation: %w", err)
	}
	meta := RelationMeta{Enabled: true}

	switch RelationType(typ) {
	case RelationAttach:
		r := AttachRelation{RelationMeta: meta}
		return decodeInto(raw, &r)
	case RelationAlign:
		r := AlignRelation{RelationMeta: meta}
		return decodeInto(raw, &r)
	case RelationFollowPath:
		r := FollowPathRelation{RelationMeta: meta}
		return decodeInto(raw, &r)
	case RelationRepeat:
		r := RepeatRelation{RelationMeta: meta}
		return decodeInto(raw, &r)
	default:
		r := UnknownRelation{RelationMeta: meta, Type: typ, Raw: append(json.RawMessage(nil), raw...)}
		if err := json.Unmarshal(raw, &r.RelationMeta); err != nil {
			return nil, fmt.Errorf("relation: %w", err)
		}
		return r, nil
	}
}

// --- Generators ---

type GeneratorType string

const (
	GeneratorInstance GeneratorType = "instance"
	GeneratorGrid     GeneratorType = "grid"
	GeneratorRadial   GeneratorType = "radial"
)

// GeneratorMeta is shared by every generator.
type GeneratorMeta struct {
	ID     string `json:"id"`
	Source string `json:"source"`
}

// Meta returns the shared fields.
func (m GeneratorMeta) Meta() GeneratorMeta { return m }

// Generator expands a source object into derived clones.
type Generator interface {
	GeneratorType() GeneratorType
	Meta() GeneratorMeta
}

// InstanceGenerator produces one clone per transform.
type InstanceGenerator struct {
	GeneratorMeta
	Transforms []TransformSpec `json:"transforms"`
}

// IntRange is an inclusive integer range encoded as [from, to].
type IntRange [2]int

// GridGenerator produces a clone per lattice cell i*A + j*B.
type GridGenerator struct {
	GeneratorMeta
	A    Param          `json:"a"`
	B    Param          `json:"b"`
	I    IntRange       `json:"i"`
	J    IntRange       `json:"j"`
	Cell *TransformSpec `json:"cellTransform,omitempty"`
}

// RadialGenerator spaces Count clones around Center. A missing EndAngle
// spreads the clones over a full turn without overlap.
type RadialGenerator struct {
	GeneratorMeta
	Count      int    `json:"count"`
	Radius     Param  `json:"radius"`
	StartAngle *Param `json:"startAngle,omitempty"`
	EndAngle   *Param `json:"endAngle,omitempty"`
	Center     *Param `json:"center,omitempty"`
}

// UnknownGenerator is a generator whose type is not implemented.
type UnknownGenerator struct {
	GeneratorMeta
	Type string
	Raw  json.RawMessage
}

func (InstanceGenerator) GeneratorType() GeneratorType  { return GeneratorInstance }
func (GridGenerator) GeneratorType() GeneratorType      { return GeneratorGrid }
func (RadialGenerator) GeneratorType() GeneratorType    { return GeneratorRadial }
func (g UnknownGenerator) GeneratorType() GeneratorType { return GeneratorType(g.Type) }

func (g InstanceGenerator) MarshalJSON() ([]byte, error) {
	type plain InstanceGenerator
	return marshalTagged(string(GeneratorInstance), plain(g))
}

func (g GridGenerator) MarshalJSON() ([]byte, error) {
	type plain GridGenerator
	return marshalTagged(string(GeneratorGrid), plain(g))
}

func (g RadialGenerator) MarshalJSON() ([]byte, error) {
	type plain RadialGenerator
	return marshalTagged(string(GeneratorRadial), plain(g))
}

func (g UnknownGenerator) MarshalJSON() ([]byte, error) { return g.Raw, nil }

// DecodeGenerator decodes a tagged generator.
func DecodeGenerator(raw json.RawMessage) (Generator, error) {
	typ, err := peekType(raw)
	if err != nil {
		return nil, fmt.Errorf("generator: %w", err)
	}

	switch GeneratorType(typ) {
	case GeneratorInstance:
		var g InstanceGenerator
		return decodeInto(raw, &g)
	case GeneratorGrid:
		var g GridGenerator
		return decodeInto(raw, &g)
	case GeneratorRadial:
		var g RadialGenerator
		return decodeInto(raw, &g)
	default:
		g := UnknownGenerator{Type: typ, Raw: append(json.RawMessage(nil), raw...)}
		if err := json.Unmarshal(raw, &g.GeneratorMeta); err != nil {
			return nil, fmt.Errorf("generator: %w", err)
		}
		return g, nil
	}
}

// --- Operators ---

type OperatorType string

const (
	OperatorAffine    OperatorType = "affine"
	OperatorRasterize OperatorType = "rasterize"
	OperatorThreshold OperatorType = "threshold"
	OperatorErode     OperatorType = "erode"
	OperatorDilate    OperatorType = "dilate"
)

// OperatorIO is shared by every operator. CachePolicy and StageName are
// presentation metadata only.
type OperatorIO struct {
	ID          string   `json:"id"`
	InputRefs   []string `json:"inputRefs"`
	OutputRef   string   `json:"outputRef"`
	CachePolicy string   `json:"cachePolicy,omitempty"`
	StageName   string   `json:"stageName,omitempty"`
}

// IO returns the shared fields.
func (o OperatorIO) IO() OperatorIO { return o }

// Operator is one geometry/raster processing step.
type Operator interface {
	OperatorType() OperatorType
	IO() OperatorIO
}

// AffineOperator re-transforms geometry.
type AffineOperator struct {
	OperatorIO
	Transform TransformSpec `json:"transform"`
}

// Resolution is a raster size in pixels.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// RasterizeOperator samples geometry into an alpha raster.
type RasterizeOperator struct {
	OperatorIO
	Resolution Resolution `json:"resolution"`
}

type ThresholdMode string

const (
	ThresholdBinary  ThresholdMode = "binary"
	ThresholdInverse ThresholdMode = "inverse"
)

// ThresholdOperator binarizes a raster at Level.
type ThresholdOperator struct {
	OperatorIO
	Level float64       `json:"level"`
	Mode  ThresholdMode `json:"mode,omitempty"`
}

// MorphologyOperator erodes or dilates a raster. Mode is carried by the
// operator type tag.
type MorphologyOperator struct {
	OperatorIO
	Mode       OperatorType `json:"-"`
	Radius     int          `json:"radius"`
	Iterations int          `json:"iterations,omitempty"`
	Kernel     string       `json:"kernel,omitempty"`
}

// UnknownOperator is an operator whose type is not implemented.
type UnknownOperator struct {
	OperatorIO
	Type string
	Raw  json.RawMessage
}

func (AffineOperator) OperatorType() OperatorType       { return OperatorAffine }
func (RasterizeOperator) OperatorType() OperatorType    { return OperatorRasterize }
func (ThresholdOperator) OperatorType() OperatorType    { return OperatorThreshold }
func (o MorphologyOperator) OperatorType() OperatorType { return o.Mode }
func (o UnknownOperator) OperatorType() OperatorType    { return OperatorType(o.Type) }

func (o AffineOperator) MarshalJSON() ([]byte, error) {
	type plain AffineOperator
	return marshalTagged(string(OperatorAffine), plain(o))
}

func (o RasterizeOperator) MarshalJSON() ([]byte, error) {
	type plain RasterizeOperator
	return marshalTagged(string(OperatorRasterize), plain(o))
}

func (o ThresholdOperator) MarshalJSON() ([]byte, error) {
	type plain ThresholdOperator
	return marshalTagged(string(OperatorThreshold), plain(o))
}

func (o MorphologyOperator) MarshalJSON() ([]byte, error) {
	type plain MorphologyOperator
	return marshalTagged(string(o.Mode), plain(o))
}

func (o UnknownOperator) MarshalJSON() ([]byte, error) { return o.Raw, nil }

// DecodeOperator decodes a tagged operator.
func DecodeOperator(raw json.RawMessage) (Operator, error) {
	typ, err := peekType(raw)
	if err != nil {
		return nil, fmt.Errorf("operator: %w", err)
	}

	switch OperatorType(typ) {
	case OperatorAffine:
		var o AffineOperator
		return decodeInto(raw, &o)
	case OperatorRasterize:
		var o RasterizeOperator
		return decodeInto(raw, &o)
	case OperatorThreshold:
		var o ThresholdOperator
		return decodeInto(raw, &o)
	case OperatorErode, OperatorDilate:
		o := MorphologyOperator{Mode: OperatorType(typ)}
		return decodeInto(raw, &o)
	default:
		o := UnknownOperator{Type: typ, Raw: append(json.RawMessage(nil), raw...)}
		if err := json.Unmarshal(raw, &o.OperatorIO); err != nil {
			return nil, fmt.Errorf("operator: %w", err)
		}
		return o, nil
	}
}
