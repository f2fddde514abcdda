package cost

import (
	"testing"

	"go.viam.com/test"

	"github.com/rigcal/rigcal/rigcalconfig"
)

func TestExtrinsicsAlwaysFrozenForReference(t *testing.T) {
	cfg := rigcalconfig.Default()
	cfg.ExtrinsicsToFloat = map[string]bool{"cam1": true}
	policy := FreezePolicy{Config: cfg}

	test.That(t, policy.ExtrinsicsFree("cam1", true), test.ShouldBeFalse)
	test.That(t, policy.ExtrinsicsFree("cam1", false), test.ShouldBeTrue)
	test.That(t, policy.ExtrinsicsFree("cam2", false), test.ShouldBeFalse)
}

func TestTimeOffsetFreeRequiresExtrinsicsModeled(t *testing.T) {
	cfg := rigcalconfig.Default()
	cfg.FloatTimestampOffsets = true
	cfg.NoExtrinsics = true
	policy := FreezePolicy{Config: cfg}

	test.That(t, policy.TimeOffsetFree(false), test.ShouldBeFalse)
}

func TestWorldToCamFreeNoExtrinsicsOnlyWhenModeSet(t *testing.T) {
	cfg := rigcalconfig.Default()
	cfg.FloatNonrefCameras = true
	policy := FreezePolicy{Config: cfg}
	test.That(t, policy.WorldToCamFreeNoExtrinsics(false), test.ShouldBeFalse)

	cfg.NoExtrinsics = true
	policy = FreezePolicy{Config: cfg}
	test.That(t, policy.WorldToCamFreeNoExtrinsics(false), test.ShouldBeTrue)
	test.That(t, policy.WorldToCamFreeNoExtrinsics(true), test.ShouldBeFalse)
}

func TestDepthScaleFreeRejectsAffineDepthToImage(t *testing.T) {
	cfg := rigcalconfig.Default()
	cfg.FloatScale = true
	policy := FreezePolicy{Config: cfg}
	test.That(t, policy.DepthScaleFree(true), test.ShouldBeFalse)
	test.That(t, policy.DepthScaleFree(false), test.ShouldBeTrue)
}
