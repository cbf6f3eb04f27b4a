package components

// Kind is the closed set of component types the pipeline knows how to treat.
// Types outside the set decode to KindUnknown and are handled by their
// ModelType alone.
type Kind int

const (
	KindUnknown Kind = iota

	// Value components
	KindTextField
	KindTextArea
	KindPassword
	KindEmail
	KindURL
	KindPhoneNumber
	KindNumber
	KindCurrency
	KindCheckbox
	KindRadio
	KindSelect
	KindSelectBoxes
	KindTags
	KindDay
	KindDateTime
	KindAddress
	KindHidden
	KindButton
	KindDataSource

	// Data containers
	KindContainer
	KindDataGrid
	KindEditGrid
	KindForm

	// Layout
	KindPanel
	KindColumns
	KindFieldset
	KindWell
	KindTable
	KindTabs
	KindContent
	KindHTMLElement
)

var kindNames = map[string]Kind{
	"textfield":   KindTextField,
	"textarea":    KindTextArea,
	"password":    KindPassword,
	"email":       KindEmail,
	"url":         KindURL,
	"phoneNumber": KindPhoneNumber,
	"number":      KindNumber,
	"currency":    KindCurrency,
	"checkbox":    KindCheckbox,
	"radio":       KindRadio,
	"select":      KindSelect,
	"selectboxes": KindSelectBoxes,
	"tags":        KindTags,
	"day":         KindDay,
	"datetime":    KindDateTime,
	"address":     KindAddress,
	"hidden":      KindHidden,
	"button":      KindButton,
	"datasource":  KindDataSource,
	"container":   KindContainer,
	"datagrid":    KindDataGrid,
	"editgrid":    KindEditGrid,
	"form":        KindForm,
	"panel":       KindPanel,
	"columns":     KindColumns,
	"fieldset":    KindFieldset,
	"well":        KindWell,
	"table":       KindTable,
	"tabs":        KindTabs,
	"content":     KindContent,
	"htmlelement": KindHTMLElement,
}

// ParseKind maps a component type string to its Kind.
func ParseKind(typ string) Kind {
	if k, ok := kindNames[typ]; ok {
		return k
	}
	return KindUnknown
}

// String returns the component type string for k.
func (k Kind) String() string {
	for name, kind := range kindNames {
		if kind == k {
			return name
		}
	}
	return "unknown"
}

// Kinds returns every known kind except KindUnknown.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kindNames))
	for k := KindTextField; k <= KindHTMLElement; k++ {
		out = append(out, k)
	}
	return out
}

// ModelType describes where a component's value lives in the data document.
type ModelType int

const (
	// ModelValue components store a single value under their key.
	ModelValue ModelType = iota
	// ModelNone components (layout) store nothing; children share the parent row.
	ModelNone
	// ModelNestedObject components store an object whose keys are the children.
	ModelNestedObject
	// ModelNestedArray components store an array of row objects.
	ModelNestedArray
	// ModelDataObject components (sub-forms) store {data: {...}}.
	ModelDataObject
)

// ModelType returns the data model of the kind. Unknown kinds are resolved by
// Component.ModelType, which also looks at the definition.
func (k Kind) ModelType() ModelType {
	switch k {
	case KindContainer:
		return ModelNestedObject
	case KindDataGrid, KindEditGrid:
		return ModelNestedArray
	case KindForm:
		return ModelDataObject
	case KindPanel, KindColumns, KindFieldset, KindWell, KindTable, KindTabs, KindContent, KindHTMLElement:
		return ModelNone
	default:
		return ModelValue
	}
}
