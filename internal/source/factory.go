package source

import "fmt"

// New builds the concrete Source for a parsed Spec, bridging the external
// source_spec string to the cast controller's typed capability (spec.md's
// Design Notes §9: "express as a tagged variant over capability"). scaleW
// and scaleH size the decode for adapters that need a target resolution
// (media, camera); busAddr is the shared frame bus address for KindQueue.
func New(spec Spec, scaleW, scaleH int, busAddr string) (Source, error) {
	switch spec.Kind {
	case KindScreen:
		return NewScreenCapture(spec.Monitor), nil

	case KindArea:
		return NewAreaCapture(spec.Monitor, spec.X, spec.Y, spec.W, spec.H), nil

	case KindWindow:
		return NewWindowCapture(spec), nil

	case KindMedia:
		return NewMediaFile(spec.Path, scaleW, scaleH), nil

	case KindCamera:
		return NewCameraCapture(spec.Index, scaleW, scaleH), nil

	case KindQueue:
		if busAddr == "" {
			return nil, fmt.Errorf("source: queue %q requires a frame bus address", spec.SlotName)
		}
		return NewExternalQueue(busAddr, spec.SlotName), nil

	default:
		return nil, fmt.Errorf("source: %w: %q", ErrUnsupportedKind, spec.Kind)
	}
}
