package imagepkg

import (
	"errors"
	"fmt"
	"image"
	"time"
)

// Expand composites every frame of an animated decoration over the shared
// background. Frame order, delays and loop count follow the source; frames
// without a delay get defaultDelay. Any failing frame fails the whole
// animation.
func Expand(background *image.NRGBA, deco *Source, defaultDelay time.Duration) (*Animation, error) {
	if !deco.Animated() {
		return nil, errors.New("decoration is not animated")
	}
	frames, err := deco.Frames()
	if err != nil {
		return nil, err
	}
	if len(frames) != deco.FrameCount() {
		return nil, fmt.Errorf("decoded %d of %d frames", len(frames), deco.FrameCount())
	}

	anim := &Animation{
		Frames:    make([]*image.NRGBA, len(frames)),
		Delays:    make([]time.Duration, len(frames)),
		LoopCount: deco.LoopCount,
	}
	for i, f := range frames {
		if f == nil || f.Bounds().Empty() {
			return nil, fmt.Errorf("frame %d is empty", i)
		}
		anim.Frames[i] = LayerDecoration(background, f)

		d := deco.Delays[i]
		if d <= 0 {
			d = defaultDelay
		}
		anim.Delays[i] = d
	}
	return anim, nil
}
