package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamforge/imagegen/internal/jobcore"
)

func TestBuildArgsGenerate(t *testing.T) {
	spec := ModeSpec{ModelPath: "/models/sdxl.safetensors", LoraPaths: []string{"/loras/a.safetensors"}}
	job := jobcore.New("c1", jobcore.TypeGenerate, jobcore.PriorityNORMAL, &jobcore.GenerateParams{
		Prompt: "a cat", Size: "512x512", Steps: 4, CFG: 1.0, Seed: 42,
	}, "")

	args, err := buildArgs(spec, job)
	require.NoError(t, err)
	assert.Contains(t, args, "--prompt")
	assert.Contains(t, args, "a cat")
	assert.Contains(t, args, "--lora")
}

func TestBuildArgsRejectsMismatchedParams(t *testing.T) {
	spec := ModeSpec{ModelPath: "/models/sdxl.safetensors"}
	job := jobcore.New("c1", jobcore.TypeGenerate, jobcore.PriorityNORMAL, &jobcore.SRParams{}, "")

	_, err := buildArgs(spec, job)
	require.Error(t, err)
	je, ok := err.(*jobcore.Error)
	require.True(t, ok)
	assert.Equal(t, jobcore.KindBadRequest, je.Kind)
}

func TestBuildArgsSR(t *testing.T) {
	spec := ModeSpec{ModelPath: "/models/sr.safetensors"}
	job := jobcore.New("c1", jobcore.TypeSR, jobcore.PriorityNORMAL, &jobcore.SRParams{
		InitImageRef: "fileRef:abc", Magnitude: 2,
	}, "")

	args, err := buildArgs(spec, job)
	require.NoError(t, err)
	assert.Contains(t, args, "--sr-input")
	assert.Contains(t, args, "fileRef:abc")
}

func TestBuildArgsDreamTick(t *testing.T) {
	spec := ModeSpec{ModelPath: "/models/sdxl.safetensors"}
	job := jobcore.New("", jobcore.TypeDreamTick, jobcore.PriorityBACKGROUND, &jobcore.DreamTickParams{
		Prompt: "a cat, oil painting", Size: "512x512", Steps: 4, CFG: 1.0, Seed: 7, DreamTick: 3,
	}, "")

	args, err := buildArgs(spec, job)
	require.NoError(t, err)
	assert.Contains(t, args, "--prompt")
	assert.Contains(t, args, "a cat, oil painting")
}

func TestFakeRecordsCalls(t *testing.T) {
	fake := &Fake{RunResult: Result{Bytes: []byte("png-bytes")}}
	job := jobcore.New("c1", jobcore.TypeGenerate, jobcore.PriorityNORMAL, &jobcore.GenerateParams{}, "")

	require.NoError(t, fake.Load(ModeSpec{Name: "sdxl-base"}))

	cancel := make(chan struct{})
	result, err := fake.Run(nil, job, nil, cancel)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), result.Bytes)

	require.NoError(t, fake.Unload())
	assert.Len(t, fake.LoadCalls, 1)
	assert.Len(t, fake.RunCalls, 1)
	assert.Equal(t, 1, fake.UnloadCalls)
}
