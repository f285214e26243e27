package diag

import (
	"fmt"
)

type Code uint16

const (
	// Неизвестная ошибка
	UnknownCode Code = 0

	// Конфигурация и описания юнитов
	CfgInfo            Code = 1000
	CfgBadProjectFile  Code = 1001
	CfgUnknownTarget   Code = 1002
	CfgBadUnitFile     Code = 1003
	CfgUnknownType     Code = 1004
	CfgBadTypeExpr     Code = 1005
	CfgDuplicateType   Code = 1006
	CfgBadRepr         Code = 1007
	CfgBadCallArgument Code = 1008

	// Ошибки I/O
	IOLoadFileError  Code = 2001
	IOWriteFileError Code = 2002

	// Ошибки раскладки
	LayInfo            Code = 3000
	LayRecursiveType   Code = 3001
	LaySizeOverflow    Code = 3002
	LayIncompleteType  Code = 3003
	LayUnsupportedType Code = 3004

	// Неподдерживаемые конструкции
	LowInfo                 Code = 4000
	LowUnsupported          Code = 4001
	LowUnsupportedType      Code = 4002
	LowConcurrencyReduced   Code = 4003
	LowUnsupportedIntrinsic Code = 4004

	// Ошибки типов в интринсиках
	LowIntrinsicTypeError  Code = 5001
	LowSimdLaneMismatch    Code = 5002
	LowSimdElementMismatch Code = 5003
	LowSimdShuffleIndex    Code = 5004
	LowIntrinsicArity      Code = 5005

	// Observability
	ObsInfo    Code = 6000
	ObsTimings Code = 6001
)

var codeDescription = map[Code]string{
	UnknownCode:             "Unknown error",
	CfgInfo:                 "Configuration information",
	CfgBadProjectFile:       "Malformed project file",
	CfgUnknownTarget:        "Unknown target triple",
	CfgBadUnitFile:          "Malformed unit description",
	CfgUnknownType:          "Unknown type name",
	CfgBadTypeExpr:          "Malformed type expression",
	CfgDuplicateType:        "Duplicate type declaration",
	CfgBadRepr:              "Invalid repr attribute",
	CfgBadCallArgument:      "Invalid intrinsic call argument",
	IOLoadFileError:         "I/O load file error",
	IOWriteFileError:        "I/O write file error",
	LayInfo:                 "Layout information",
	LayRecursiveType:        "Recursive value type has infinite size",
	LaySizeOverflow:         "Type size overflows the target address space",
	LayIncompleteType:       "Type body is not known",
	LayUnsupportedType:      "Type has no layout",
	LowInfo:                 "Lowering information",
	LowUnsupported:          "Unsupported construct",
	LowUnsupportedType:      "Unsupported type",
	LowConcurrencyReduced:   "Concurrency reduced to sequential semantics",
	LowUnsupportedIntrinsic: "Unsupported intrinsic",
	LowIntrinsicTypeError:   "Invalid intrinsic monomorphization",
	LowSimdLaneMismatch:     "SIMD lane count mismatch",
	LowSimdElementMismatch:  "SIMD element type mismatch",
	LowSimdShuffleIndex:     "SIMD shuffle index out of range",
	LowIntrinsicArity:       "Wrong number of intrinsic arguments",
	ObsInfo:                 "Observability information",
	ObsTimings:              "Pipeline timings",
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("CFG%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("IO%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("LAY%04d", ic)
	case ic >= 4000 && ic < 6000:
		return fmt.Sprintf("LOW%04d", ic)
	case ic >= 6000 && ic < 7000:
		return fmt.Sprintf("OBS%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
