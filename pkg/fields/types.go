package fields

// Type is the platform's field type discriminator.
type Type string

const (
	TypeSingleLineText     Type = "SINGLE_LINE_TEXT"
	TypeMultiLineText      Type = "MULTI_LINE_TEXT"
	TypeRichText           Type = "RICH_TEXT"
	TypeNumber             Type = "NUMBER"
	TypeCalc               Type = "CALC"
	TypeCheckBox           Type = "CHECK_BOX"
	TypeRadioButton        Type = "RADIO_BUTTON"
	TypeDropDown           Type = "DROP_DOWN"
	TypeMultiSelect        Type = "MULTI_SELECT"
	TypeDate               Type = "DATE"
	TypeTime               Type = "TIME"
	TypeDateTime           Type = "DATETIME"
	TypeLink               Type = "LINK"
	TypeFile               Type = "FILE"
	TypeUserSelect         Type = "USER_SELECT"
	TypeOrganizationSelect Type = "ORGANIZATION_SELECT"
	TypeGroupSelect        Type = "GROUP_SELECT"
	TypeGroup              Type = "GROUP"
	TypeSubtable           Type = "SUBTABLE"
	TypeReferenceTable     Type = "REFERENCE_TABLE"

	TypeRecordNumber   Type = "RECORD_NUMBER"
	TypeCreator        Type = "CREATOR"
	TypeCreatedTime    Type = "CREATED_TIME"
	TypeModifier       Type = "MODIFIER"
	TypeUpdatedTime    Type = "UPDATED_TIME"
	TypeStatus         Type = "STATUS"
	TypeStatusAssignee Type = "STATUS_ASSIGNEE"
	TypeCategory       Type = "CATEGORY"
)

var userTypes = map[Type]struct{}{
	TypeSingleLineText: {}, TypeMultiLineText: {}, TypeRichText: {}, TypeNumber: {},
	TypeCalc: {}, TypeCheckBox: {}, TypeRadioButton: {}, TypeDropDown: {},
	TypeMultiSelect: {}, TypeDate: {}, TypeTime: {}, TypeDateTime: {}, TypeLink: {},
	TypeFile: {}, TypeUserSelect: {}, TypeOrganizationSelect: {}, TypeGroupSelect: {},
	TypeGroup: {}, TypeSubtable: {}, TypeReferenceTable: {},
}

var systemTypes = map[Type]struct{}{
	TypeRecordNumber: {}, TypeCreator: {}, TypeCreatedTime: {}, TypeModifier: {},
	TypeUpdatedTime: {}, TypeStatus: {}, TypeStatusAssignee: {}, TypeCategory: {},
}

// Known reports whether t is part of the fixed type enumeration.
func (t Type) Known() bool {
	_, user := userTypes[t]
	_, system := systemTypes[t]
	return user || system
}

// IsSystem reports whether t is a platform-managed field.
func (t Type) IsSystem() bool {
	_, ok := systemTypes[t]
	return ok
}

// IsChoice reports whether t carries an options map.
func (t Type) IsChoice() bool {
	switch t {
	case TypeCheckBox, TypeRadioButton, TypeDropDown, TypeMultiSelect:
		return true
	}
	return false
}

// AllowedInSubtable reports whether t may appear inside a subtable.
func (t Type) AllowedInSubtable() bool {
	switch {
	case t == TypeSubtable, t == TypeReferenceTable, t == TypeGroup:
		return false
	case t.IsSystem():
		return false
	}
	return true
}

// Placeable reports whether fields of type t can be referenced from a form
// layout. Process-management and category fields never appear there.
func (t Type) Placeable() bool {
	switch t {
	case TypeStatus, TypeStatusAssignee, TypeCategory:
		return false
	}
	return t.Known()
}

// LinkProtocols are the accepted values of a LINK field's protocol.
var LinkProtocols = []string{"WEB", "CALL", "MAIL"}

// ReferenceTableSizes are the accepted row counts of a reference table.
var ReferenceTableSizes = []string{"1", "3", "5", "10", "20", "30", "40", "50"}

// numericCalcFormats are CALC formats that render a number; an absent format
// defaults to NUMBER.
var numericCalcFormats = map[string]struct{}{
	"":             {},
	"NUMBER":       {},
	"NUMBER_DIGIT": {},
}
