package gpu

type Format uint32

const (
	FormatUndefined Format = iota
	FormatR8G8B8A8Unorm
	FormatR8G8B8A8Srgb
	FormatB8G8R8A8Unorm
	FormatB8G8R8A8Srgb
	FormatR16G16B16A16Sfloat
	FormatR32G32B32A32Sfloat
	FormatD32Sfloat
)

// BytesPerPixel returns the texel size of f, or 0 for FormatUndefined.
func (f Format) BytesPerPixel() int {
	switch f {
	case FormatR8G8B8A8Unorm, FormatR8G8B8A8Srgb, FormatB8G8R8A8Unorm, FormatB8G8R8A8Srgb, FormatD32Sfloat:
		return 4
	case FormatR16G16B16A16Sfloat:
		return 8
	case FormatR32G32B32A32Sfloat:
		return 16
	}
	return 0
}

func (f Format) IsDepth() bool {
	return f == FormatD32Sfloat
}

type ImageLayout uint32

const (
	LayoutUndefined ImageLayout = iota
	LayoutGeneral
	LayoutColorAttachment
	LayoutDepthAttachment
	LayoutTransferSrc
	LayoutTransferDst
	LayoutShaderReadOnly
	LayoutPresentSrc
)

func (l ImageLayout) String() string {
	switch l {
	case LayoutUndefined:
		return "undefined"
	case LayoutGeneral:
		return "general"
	case LayoutColorAttachment:
		return "color_attachment"
	case LayoutDepthAttachment:
		return "depth_attachment"
	case LayoutTransferSrc:
		return "transfer_src"
	case LayoutTransferDst:
		return "transfer_dst"
	case LayoutShaderReadOnly:
		return "shader_read_only"
	case LayoutPresentSrc:
		return "present_src"
	}
	return "invalid"
}

type ImageAspect uint32

const (
	AspectColor ImageAspect = 1 << iota
	AspectDepth
)

type ImageUsage uint32

const (
	ImageUsageTransferSrc ImageUsage = 1 << iota
	ImageUsageTransferDst
	ImageUsageSampled
	ImageUsageStorage
	ImageUsageColorAttachment
	ImageUsageDepthStencilAttachment
)

type BufferUsage uint32

const (
	BufferUsageTransferSrc BufferUsage = 1 << iota
	BufferUsageTransferDst
	BufferUsageUniform
	BufferUsageStorage
	BufferUsageIndex
	BufferUsageVertex
	BufferUsageShaderDeviceAddress
)

// MemoryUsage picks the memory heap of an allocation.
type MemoryUsage uint32

const (
	MemoryGPUOnly MemoryUsage = iota
	MemoryCPUOnly
	MemoryCPUToGPU
	MemoryGPUToCPU
)

// HostVisible reports whether memory of this usage can be mapped.
func (m MemoryUsage) HostVisible() bool {
	return m != MemoryGPUOnly
}

type PipelineStage uint32

const (
	StageTopOfPipe PipelineStage = 1 << iota
	StageVertexShader
	StageFragmentShader
	StageColorAttachmentOutput
	StageComputeShader
	StageTransfer
	StageBottomOfPipe
	StageAllCommands
)

type Access uint32

const (
	AccessShaderRead Access = 1 << iota
	AccessShaderWrite
	AccessTransferRead
	AccessTransferWrite
	AccessMemoryRead
	AccessMemoryWrite
)

type DescriptorType uint32

const (
	DescriptorSampler DescriptorType = iota
	DescriptorCombinedImageSampler
	DescriptorSampledImage
	DescriptorStorageImage
	DescriptorUniformBuffer
	DescriptorStorageBuffer
)

func (t DescriptorType) IsImage() bool {
	return t <= DescriptorStorageImage
}

type ShaderStage uint32

const (
	ShaderStageVertex ShaderStage = 1 << iota
	ShaderStageFragment
	ShaderStageCompute

	ShaderStageAllGraphics = ShaderStageVertex | ShaderStageFragment
)

type Filter uint32

const (
	FilterNearest Filter = iota
	FilterLinear
)

type PipelineBindPoint uint32

const (
	BindPointGraphics PipelineBindPoint = iota
	BindPointCompute
)

type IndexType uint32

const (
	IndexTypeUint32 IndexType = iota
	IndexTypeUint16
)

type PresentMode uint32

const (
	PresentModeFifo PresentMode = iota
	PresentModeMailbox
	PresentModeImmediate
)

type LoadOp uint32

const (
	LoadOpLoad LoadOp = iota
	LoadOpClear
	LoadOpDontCare
)

type StoreOp uint32

const (
	StoreOpStore StoreOp = iota
	StoreOpDontCare
)

type CompareOp uint32

const (
	CompareNever CompareOp = iota
	CompareLessOrEqual
	CompareGreaterOrEqual
	CompareAlways
)

type CullMode uint32

const (
	CullNone CullMode = iota
	CullBack
	CullFront
)

type BlendMode uint32

const (
	BlendNone BlendMode = iota
	BlendAlpha
	BlendAdditive
)

type ImageViewType uint32

const (
	ViewType2D ImageViewType = iota
	ViewTypeCube
)

// Sentinels for "all remaining" in subresource ranges.
const (
	RemainingMipLevels   = ^uint32(0)
	RemainingArrayLayers = ^uint32(0)
)

type Extent2D struct {
	Width, Height uint32
}

type Extent3D struct {
	Width, Height, Depth uint32
}

func (e Extent2D) To3D() Extent3D {
	return Extent3D{Width: e.Width, Height: e.Height, Depth: 1}
}

func (e Extent3D) To2D() Extent2D {
	return Extent2D{Width: e.Width, Height: e.Height}
}

type Offset3D struct {
	X, Y, Z int32
}

type Rect2D struct {
	X, Y   int32
	Extent Extent2D
}

type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

type ImageSubresourceRange struct {
	Aspect         ImageAspect
	BaseMipLevel   uint32
	LevelCount     uint32
	BaseArrayLayer uint32
	LayerCount     uint32
}

type ImageSubresourceLayers struct {
	Aspect         ImageAspect
	MipLevel       uint32
	BaseArrayLayer uint32
	LayerCount     uint32
}

type ImageBarrier struct {
	Image     Image
	SrcAccess Access
	DstAccess Access
	OldLayout ImageLayout
	NewLayout ImageLayout
	Range     ImageSubresourceRange
}

type ImageBlit struct {
	SrcSubresource ImageSubresourceLayers
	SrcOffsets     [2]Offset3D
	DstSubresource ImageSubresourceLayers
	DstOffsets     [2]Offset3D
}

type BufferCopy struct {
	SrcOffset, DstOffset, Size uint64
}

type BufferImageCopy struct {
	BufferOffset     uint64
	ImageSubresource ImageSubresourceLayers
	ImageOffset      Offset3D
	ImageExtent      Extent3D
}

type BufferDesc struct {
	Size   uint64
	Usage  BufferUsage
	Memory MemoryUsage
}

type ImageDesc struct {
	Extent      Extent3D
	Format      Format
	Usage       ImageUsage
	MipLevels   uint32
	ArrayLayers uint32
	Cube        bool
}

type ImageViewDesc struct {
	Image     Image
	Format    Format
	Type      ImageViewType
	Aspect    ImageAspect
	MipLevels uint32
	Layers    uint32
}

type SamplerDesc struct {
	MagFilter Filter
	MinFilter Filter
	MaxLod    float32
}

type DescriptorSetLayoutBinding struct {
	Binding uint32
	Type    DescriptorType
	Count   uint32
	Stages  ShaderStage
}

type DescriptorPoolSize struct {
	Type  DescriptorType
	Count uint32
}

type DescriptorPoolDesc struct {
	MaxSets uint32
	Sizes   []DescriptorPoolSize
}

type DescriptorImageInfo struct {
	Sampler Sampler
	View    ImageView
	Layout  ImageLayout
}

type DescriptorBufferInfo struct {
	Buffer Buffer
	Offset uint64
	Range  uint64
}

// DescriptorWrite targets one binding of a set. Exactly one of Image or
// Buffer is set, matching Type.
type DescriptorWrite struct {
	Set     DescriptorSet
	Binding uint32
	Type    DescriptorType
	Image   *DescriptorImageInfo
	Buffer  *DescriptorBufferInfo
}

type PushConstantRange struct {
	Stages ShaderStage
	Offset uint32
	Size   uint32
}

type PipelineLayoutDesc struct {
	SetLayouts    []DescriptorSetLayout
	PushConstants []PushConstantRange
}

type ComputePipelineDesc struct {
	Layout PipelineLayout
	Shader ShaderModule
}

type GraphicsPipelineDesc struct {
	Layout         PipelineLayout
	VertexShader   ShaderModule
	FragmentShader ShaderModule
	ColorFormat    Format
	DepthFormat    Format
	DepthTest      bool
	DepthWrite     bool
	DepthCompare   CompareOp
	Cull           CullMode
	Blend          BlendMode
}

type SurfaceCapabilities struct {
	CurrentExtent Extent2D
	MinExtent     Extent2D
	MaxExtent     Extent2D
	MinImageCount uint32
	MaxImageCount uint32 // 0 means unbounded
}

type SwapchainDesc struct {
	Extent      Extent2D
	Format      Format
	PresentMode PresentMode
	ImageCount  uint32
	Usage       ImageUsage
}

// SwapchainImages is the chain a device hands back for a SwapchainDesc.
// The images belong to the swapchain; the views belong to the caller.
type SwapchainImages struct {
	Handle Swapchain
	Format Format
	Extent Extent2D
	Images []Image
	Views  []ImageView
}

type SemaphoreWait struct {
	Semaphore Semaphore
	Stage     PipelineStage
}

type SubmitInfo struct {
	Wait     []SemaphoreWait
	Commands []CommandBuffer
	Signal   []Semaphore
}

type PresentInfo struct {
	Swapchain  Swapchain
	ImageIndex uint32
	Wait       []Semaphore
}

type RenderingAttachment struct {
	View       ImageView
	Layout     ImageLayout
	LoadOp     LoadOp
	StoreOp    StoreOp
	ClearColor [4]float32
	ClearDepth float32
}

type RenderingInfo struct {
	Area  Rect2D
	Color []RenderingAttachment
	Depth *RenderingAttachment
}
