package seam

import "fmt"

// Flat indices of the named registers. Unlisted slots inside a partition
// have no assigned meaning yet but are still stored and persisted.
const (
	// XP
	XPExposureControl = 0 + iota
	XPExposureTime
	XPLaserControl
	XPLaserStrength
	XPLampControl
	XPLampPower
	XPExtractionAlgo
	XPLumaThresh
	XPScanMode
	XPFilterTime
	XPRoiX
	XPRoiY
	XPRoiW
	XPRoiH
)

const (
	// KP
	KPAngle1 = 30 + iota
	KPAngle2
	KPLength1
	KPLength2
	KPWidth1
	KPWidth2
	KPThickness1
	KPThickness2
	KPGap1
	KPGap2
	KPDrop1
	KPDrop2
)

const (
	// OP
	OPDetectMethod = 60 + iota
	OPDirection
	OPCornerType
	OPLayerSelect
	OPGapPos
	OPGapType
	OPTrackPos
	OPTrackType
	OPBevelAngle1
	OPBevelAngle2
	OPNormalType1
	OPNormalType2
)

const (
	// VP
	VPAngleMin = 120 + iota
	VPAngleMax
	VPGapMin
	VPGapMax
	VPDropMin
	VPDropMax
	VPGrooveAreaMin
	VPGrooveAreaMax
	VPGrooveAreaPos
	VPGrooveAreaType
	VPWidth1Min
	VPWidth1Max
	VPWidth2Min
	VPWidth2Max
	VPWidth3Min
	VPWidth3Max
	VPWidth4Min
	VPWidth4Max
	VPWeldedAngleMin
	VPWeldedAngleMax
	VPWeldedAreaMin
	VPWeldedAreaMax
	VPWeldedLengthMin
	VPWeldedLengthMax
	VPWeldedThicknessMin
	VPWeldedThicknessMax
	VPWeldedWidthMin
	VPWeldedWidthMax
	VPWeldedDetection
	VPWeldedRsv
	VPNormalAngleMin
	VPNormalAngleMax
)

const (
	VPL1A = 168 + iota
	VPL1APlus
	VPL1Length
	VPL2A
	VPL2APlus
	VPL2Length
	VPL3A
	VPL3APlus
	VPL3Length
	VPL4A
	VPL4APlus
	VPL4Length
)

const (
	// OC
	OCFeaturePoint = 180 + iota
	OCFilterStrength
	OCBasePosY
	OCBasePosZ
	OCBaseDeltaY
	OCBaseDeltaZ
	OCOffsetY
	OCOffsetZ
	OCStartPointFilter
	OCTrackingArea
	OCTrackingStrength
	OCTrackingDuration
)

const (
	// SF
	SFJointType = 240 + iota
	SFXPEnable
	SFKPEnable
	SFOPEnable1
	SFOPEnable2
	SFVPEnable1
	SFVPEnable2
	SFOCEnable1
	SFOCEnable2
	SFVersion
)

// VP local offsets 32..47 are reserved; layer groups start at local 48.
const (
	vpReservedFirst = 32
	vpReservedEnd   = 48
	vpLayerFirst    = 48
	vpLayerStride   = 3
	NumLayers       = 4
)

// LayerFields holds the flat indices of one VP layer group.
type LayerFields struct {
	A      int
	APlus  int
	Length int
}

// Layer returns the registers of VP layer n, n in [1,4].
func Layer(n int) (LayerFields, error) {
	if n < 1 || n > NumLayers {
		return LayerFields{}, fmt.Errorf("%w: layer %d not in [1,%d]", ErrIndexOutOfRange, n, NumLayers)
	}
	a := layouts[VP].base + vpLayerFirst + (n-1)*vpLayerStride
	return LayerFields{A: a, APlus: a + 1, Length: a + 2}, nil
}

// IsReserved reports whether a flat index is one of the inert VP
// placeholders.
func IsReserved(flat int) bool {
	local := flat - layouts[VP].base
	return local >= vpReservedFirst && local < vpReservedEnd
}
