package gpu

// ObjectKind identifies the type of a device object behind a handle.
type ObjectKind uint8

const (
	ObjectKindUnknown ObjectKind = iota
	ObjectKindFence
	ObjectKindSemaphore
	ObjectKindCommandPool
	ObjectKindBuffer
	ObjectKindImage
	ObjectKindImageView
	ObjectKindSampler
	ObjectKindDescriptorSetLayout
	ObjectKindDescriptorPool
	ObjectKindPipelineLayout
	ObjectKindPipeline
	ObjectKindShaderModule
	ObjectKindSwapchain
)

func (k ObjectKind) String() string {
	switch k {
	case ObjectKindFence:
		return "fence"
	case ObjectKindSemaphore:
		return "semaphore"
	case ObjectKindCommandPool:
		return "command_pool"
	case ObjectKindBuffer:
		return "buffer"
	case ObjectKindImage:
		return "image"
	case ObjectKindImageView:
		return "image_view"
	case ObjectKindSampler:
		return "sampler"
	case ObjectKindDescriptorSetLayout:
		return "descriptor_set_layout"
	case ObjectKindDescriptorPool:
		return "descriptor_pool"
	case ObjectKindPipelineLayout:
		return "pipeline_layout"
	case ObjectKindPipeline:
		return "pipeline"
	case ObjectKindShaderModule:
		return "shader_module"
	case ObjectKindSwapchain:
		return "swapchain"
	default:
		return "unknown"
	}
}

// Object is any device object that can be handed to Device.Destroy.
type Object interface {
	Kind() ObjectKind
	ID() uint64
}

// Null is the zero handle. No valid object ever has this id.
const Null = 0

type (
	Fence               uint64
	Semaphore           uint64
	CommandPool         uint64
	Buffer              uint64
	Image               uint64
	ImageView           uint64
	Sampler             uint64
	DescriptorSetLayout uint64
	DescriptorPool      uint64
	DescriptorSet       uint64
	PipelineLayout      uint64
	Pipeline            uint64
	ShaderModule        uint64
	Swapchain           uint64
)

func (h Fence) Kind() ObjectKind               { return ObjectKindFence }
func (h Fence) ID() uint64                     { return uint64(h) }
func (h Semaphore) Kind() ObjectKind           { return ObjectKindSemaphore }
func (h Semaphore) ID() uint64                 { return uint64(h) }
func (h CommandPool) Kind() ObjectKind         { return ObjectKindCommandPool }
func (h CommandPool) ID() uint64               { return uint64(h) }
func (h Buffer) Kind() ObjectKind              { return ObjectKindBuffer }
func (h Buffer) ID() uint64                    { return uint64(h) }
func (h Image) Kind() ObjectKind               { return ObjectKindImage }
func (h Image) ID() uint64                     { return uint64(h) }
func (h ImageView) Kind() ObjectKind           { return ObjectKindImageView }
func (h ImageView) ID() uint64                 { return uint64(h) }
func (h Sampler) Kind() ObjectKind             { return ObjectKindSampler }
func (h Sampler) ID() uint64                   { return uint64(h) }
func (h DescriptorSetLayout) Kind() ObjectKind { return ObjectKindDescriptorSetLayout }
func (h DescriptorSetLayout) ID() uint64       { return uint64(h) }
func (h DescriptorPool) Kind() ObjectKind      { return ObjectKindDescriptorPool }
func (h DescriptorPool) ID() uint64            { return uint64(h) }
func (h PipelineLayout) Kind() ObjectKind      { return ObjectKindPipelineLayout }
func (h PipelineLayout) ID() uint64            { return uint64(h) }
func (h Pipeline) Kind() ObjectKind            { return ObjectKindPipeline }
func (h Pipeline) ID() uint64                  { return uint64(h) }
func (h ShaderModule) Kind() ObjectKind        { return ObjectKindShaderModule }
func (h ShaderModule) ID() uint64              { return uint64(h) }
func (h Swapchain) Kind() ObjectKind           { return ObjectKindSwapchain }
func (h Swapchain) ID() uint64                 { return uint64(h) }
