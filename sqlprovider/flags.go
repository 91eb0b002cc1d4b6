package sqlprovider

// Flags describes what a backend supports. Values are immutable once built and
// are passed by value.
type Flags struct {
	IsParameterOrderDependent bool `json:"isParameterOrderDependent"`

	// AcceptsTakeAsParameter reports whether a row limit may be bound as a
	// parameter. When false, parameter values are inlined as literals.
	AcceptsTakeAsParameter       bool `json:"acceptsTakeAsParameter"`
	AcceptsTakeAsParameterIfSkip bool `json:"acceptsTakeAsParameterIfSkip"`

	IsTakeSupported       bool `json:"isTakeSupported"`
	IsSkipSupported       bool `json:"isSkipSupported"`
	IsSkipSupportedIfTake bool `json:"isSkipSupportedIfTake"`

	IsSubQueryColumnSupported   bool `json:"isSubQueryColumnSupported"`
	IsCountSubQuerySupported    bool `json:"isCountSubQuerySupported"`
	IsIdentityParameterRequired bool `json:"isIdentityParameterRequired"`
	IsApplyJoinSupported        bool `json:"isApplyJoinSupported"`
	IsInsertOrUpdateSupported   bool `json:"isInsertOrUpdateSupported"`
	CanCombineParameters        bool `json:"canCombineParameters"`

	// MaxInListValuesCount caps the size of IN lists. Zero means no cap.
	MaxInListValuesCount int `json:"maxInListValuesCount"`
}

// DefaultFlags returns the flags of a backend that supports everything.
func DefaultFlags() Flags {
	return Flags{
		AcceptsTakeAsParameter:    true,
		IsTakeSupported:           true,
		IsSkipSupported:           true,
		IsSubQueryColumnSupported: true,
		IsCountSubQuerySupported:  true,
		CanCombineParameters:      true,
		MaxInListValuesCount:      0,
	}
}

// takeAsParameter reports whether the row limit can stay a bind parameter
// given whether a skip is present.
func (f Flags) takeAsParameter(hasSkip bool) bool {
	if hasSkip && f.AcceptsTakeAsParameterIfSkip {
		return true
	}
	return f.AcceptsTakeAsParameter
}

// skipSupported reports whether a row offset can be rendered.
func (f Flags) skipSupported(hasTake bool) bool {
	return f.IsSkipSupported || (hasTake && f.IsSkipSupportedIfTake)
}
