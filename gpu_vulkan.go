// gpu_vulkan.go - Vulkan-backed GPUBackend

package svrcore

import (
	"context"
	"fmt"
	"image"
	_ "image/png"
	"os"
	"sync"
	"sync/atomic"
	"unsafe"

	vk "github.com/goki/vulkan"
)

// vkTexture is the concrete resource behind a *Texture when the Vulkan
// backend created it. Storage images stay in vk.ImageLayoutGeneral for their
// whole lifetime so every kernel and copy can touch them without a barrier
// dance; this trades a little transfer throughput for the offscreen,
// no-swapchain case this backend exists for.
type vkTexture struct {
	id      uint64
	desc    TextureDesc
	image   vk.Image
	memory  vk.DeviceMemory
	view    vk.ImageView
	format  vk.Format
	rowSize int // tightly packed CPU row size in bytes

	stagingBuffer vk.Buffer
	stagingMemory vk.DeviceMemory
}

// gpuVulkanBackend implements GPUBackend on a real Vulkan device, offscreen,
// with no window or swapchain. Every drawing operation is a compute
// dispatch; ClearRTV and CopyTexture/DownloadTexture use plain image/buffer
// copy commands.
type gpuVulkanBackend struct {
	mu sync.Mutex

	log Logger

	instance       vk.Instance
	physicalDevice vk.PhysicalDevice
	device         vk.Device
	queue          vk.Queue
	queueFamily    uint32

	commandPool   vk.CommandPool
	commandBuffer vk.CommandBuffer
	fence         vk.Fence

	descriptorSetLayout vk.DescriptorSetLayout
	pipelineLayout      vk.PipelineLayout
	descriptorPool      vk.DescriptorPool
	descriptorSet       vk.DescriptorSet

	motionSamplePipeline vk.Pipeline
	overlayPipeline      vk.Pipeline
	convertPipeline       vk.Pipeline

	nextID   atomic.Uint64
	textures map[uint64]*vkTexture
}

var vulkanLoaderOnce sync.Once
var vulkanLoaderErr error

// NewVulkanBackend brings up a headless Vulkan device suitable for compute
// dispatch and offscreen image work. log may be nil, in which case
// diagnostics are discarded.
func NewVulkanBackend(log Logger) (GPUBackend, error) {
	if log == nil {
		log = nopLogger{}
	}
	vb := &gpuVulkanBackend{log: log, textures: make(map[uint64]*vkTexture)}
	if err := vb.init(); err != nil {
		return nil, err
	}
	return vb, nil
}

func (vb *gpuVulkanBackend) init() error {
	vulkanLoaderOnce.Do(func() {
		if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
			vulkanLoaderErr = fmt.Errorf("load vulkan library: %w", err)
			return
		}
		vulkanLoaderErr = vk.Init()
	})
	if vulkanLoaderErr != nil {
		return &GPUError{Operation: "init", Details: "loader", Err: vulkanLoaderErr}
	}

	if err := vb.createInstance(); err != nil {
		return &GPUError{Operation: "init", Details: "instance", Err: err}
	}
	if err := vb.selectPhysicalDevice(); err != nil {
		vb.destroyInstance()
		return &GPUError{Operation: "init", Details: "physical device", Err: err}
	}
	if err := vb.createDevice(); err != nil {
		vb.destroyInstance()
		return &GPUError{Operation: "init", Details: "device", Err: err}
	}
	if err := vb.createCommandPool(); err != nil {
		vb.destroyDevice()
		vb.destroyInstance()
		return &GPUError{Operation: "init", Details: "command pool", Err: err}
	}
	if err := vb.createCommandBuffer(); err != nil {
		vb.destroyCommandPool()
		vb.destroyDevice()
		vb.destroyInstance()
		return &GPUError{Operation: "init", Details: "command buffer", Err: err}
	}
	if err := vb.createFence(); err != nil {
		vb.destroyCommandPool()
		vb.destroyDevice()
		vb.destroyInstance()
		return &GPUError{Operation: "init", Details: "fence", Err: err}
	}
	if err := vb.createDescriptorLayout(); err != nil {
		vb.destroyFence()
		vb.destroyCommandPool()
		vb.destroyDevice()
		vb.destroyInstance()
		return &GPUError{Operation: "init", Details: "descriptor layout", Err: err}
	}
	if err := vb.createComputePipelines(); err != nil {
		vb.destroyDescriptorLayout()
		vb.destroyFence()
		vb.destroyCommandPool()
		vb.destroyDevice()
		vb.destroyInstance()
		return &GPUError{Operation: "init", Details: "compute pipelines", Err: err}
	}
	if err := vb.createDescriptorPool(); err != nil {
		vb.destroyComputePipelines()
		vb.destroyDescriptorLayout()
		vb.destroyFence()
		vb.destroyCommandPool()
		vb.destroyDevice()
		vb.destroyInstance()
		return &GPUError{Operation: "init", Details: "descriptor pool", Err: err}
	}
	return nil
}

func (vb *gpuVulkanBackend) createInstance() error {
	appInfo := vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		PApplicationName:   safeString("svrcore"),
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		PEngineName:        safeString("svrcore capture backend"),
		EngineVersion:      vk.MakeVersion(1, 0, 0),
		ApiVersion:         vk.MakeVersion(1, 1, 0),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &appInfo,
	}
	var instance vk.Instance
	if res := vk.CreateInstance(&createInfo, nil, &instance); res != vk.Success {
		return fmt.Errorf("vkCreateInstance failed: %d", res)
	}
	vb.instance = instance
	vk.InitInstance(instance)
	return nil
}

func (vb *gpuVulkanBackend) selectPhysicalDevice() error {
	var count uint32
	vk.EnumeratePhysicalDevices(vb.instance, &count, nil)
	if count == 0 {
		return fmt.Errorf("no Vulkan-capable devices found")
	}
	devices := make([]vk.PhysicalDevice, count)
	vk.EnumeratePhysicalDevices(vb.instance, &count, devices)

	for _, d := range devices {
		var qCount uint32
		vk.GetPhysicalDeviceQueueFamilyProperties(d, &qCount, nil)
		families := make([]vk.QueueFamilyProperties, qCount)
		vk.GetPhysicalDeviceQueueFamilyProperties(d, &qCount, families)
		for i, qf := range families {
			qf.Deref()
			if qf.QueueFlags&vk.QueueFlags(vk.QueueComputeBit) != 0 {
				vb.physicalDevice = d
				vb.queueFamily = uint32(i)
				return nil
			}
		}
	}
	return fmt.Errorf("no device exposes a compute queue")
}

func (vb *gpuVulkanBackend) createDevice() error {
	priority := float32(1.0)
	queueInfo := vk.DeviceQueueCreateInfo{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: vb.queueFamily,
		QueueCount:       1,
		PQueuePriorities: []float32{priority},
	}
	devInfo := vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: 1,
		PQueueCreateInfos:    []vk.DeviceQueueCreateInfo{queueInfo},
	}
	var device vk.Device
	if res := vk.CreateDevice(vb.physicalDevice, &devInfo, nil, &device); res != vk.Success {
		return fmt.Errorf("vkCreateDevice failed: %d", res)
	}
	vb.device = device
	var queue vk.Queue
	vk.GetDeviceQueue(device, vb.queueFamily, 0, &queue)
	vb.queue = queue
	return nil
}

func (vb *gpuVulkanBackend) createCommandPool() error {
	info := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: vb.queueFamily,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(vb.device, &info, nil, &pool); res != vk.Success {
		return fmt.Errorf("vkCreateCommandPool failed: %d", res)
	}
	vb.commandPool = pool
	return nil
}

func (vb *gpuVulkanBackend) createCommandBuffer() error {
	info := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        vb.commandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	buffers := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(vb.device, &info, buffers); res != vk.Success {
		return fmt.Errorf("vkAllocateCommandBuffers failed: %d", res)
	}
	vb.commandBuffer = buffers[0]
	return nil
}

func (vb *gpuVulkanBackend) createFence() error {
	info := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
		Flags: vk.FenceCreateFlags(vk.FenceCreateSignaledBit),
	}
	var fence vk.Fence
	if res := vk.CreateFence(vb.device, &info, nil, &fence); res != vk.Success {
		return fmt.Errorf("vkCreateFence failed: %d", res)
	}
	vb.fence = fence
	return nil
}

// createDescriptorLayout sets up one set layout shared by all three compute
// kernels: two storage images plus a push-constant range sized for the
// largest of the three PC blocks (convert's).
func (vb *gpuVulkanBackend) createDescriptorLayout() error {
	bindings := []vk.DescriptorSetLayoutBinding{
		{Binding: 0, DescriptorType: vk.DescriptorTypeStorageImage, DescriptorCount: 1, StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit)},
		{Binding: 1, DescriptorType: vk.DescriptorTypeStorageImage, DescriptorCount: 1, StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit)},
	}
	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(vb.device, &layoutInfo, nil, &layout); res != vk.Success {
		return fmt.Errorf("vkCreateDescriptorSetLayout failed: %d", res)
	}
	vb.descriptorSetLayout = layout

	pushRange := vk.PushConstantRange{
		StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit),
		Offset:     0,
		Size:       uint32(unsafe.Sizeof(convertPushConstants{})),
	}
	pipeLayoutInfo := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         1,
		PSetLayouts:            []vk.DescriptorSetLayout{layout},
		PushConstantRangeCount: 1,
		PPushConstantRanges:    []vk.PushConstantRange{pushRange},
	}
	var pipeLayout vk.PipelineLayout
	if res := vk.CreatePipelineLayout(vb.device, &pipeLayoutInfo, nil, &pipeLayout); res != vk.Success {
		return fmt.Errorf("vkCreatePipelineLayout failed: %d", res)
	}
	vb.pipelineLayout = pipeLayout
	return nil
}

func (vb *gpuVulkanBackend) createShaderModule(code []byte) (vk.ShaderModule, error) {
	info := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    sliceUint32(code),
	}
	var module vk.ShaderModule
	if res := vk.CreateShaderModule(vb.device, &info, nil, &module); res != vk.Success {
		return nil, fmt.Errorf("vkCreateShaderModule failed: %d", res)
	}
	return module, nil
}

func (vb *gpuVulkanBackend) createComputePipeline(code []byte) (vk.Pipeline, error) {
	module, err := vb.createShaderModule(code)
	if err != nil {
		return nil, err
	}
	defer vk.DestroyShaderModule(vb.device, module, nil)

	stage := vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  vk.ShaderStageComputeBit,
		Module: module,
		PName:  safeString("main"),
	}
	info := vk.ComputePipelineCreateInfo{
		SType:  vk.StructureTypeComputePipelineCreateInfo,
		Stage:  stage,
		Layout: vb.pipelineLayout,
	}
	pipelines := make([]vk.Pipeline, 1)
	if res := vk.CreateComputePipelines(vb.device, vk.PipelineCache(vk.NullHandle), 1, []vk.ComputePipelineCreateInfo{info}, nil, pipelines); res != vk.Success {
		return nil, fmt.Errorf("vkCreateComputePipelines failed: %d", res)
	}
	return pipelines[0], nil
}

func (vb *gpuVulkanBackend) createComputePipelines() error {
	var err error
	if vb.motionSamplePipeline, err = vb.createComputePipeline(spirvMotionSampleAccumulate); err != nil {
		return err
	}
	if vb.overlayPipeline, err = vb.createComputePipeline(spirvOverlayBlend); err != nil {
		return err
	}
	if vb.convertPipeline, err = vb.createComputePipeline(spirvConvertPixelFormat); err != nil {
		return err
	}
	return nil
}

func (vb *gpuVulkanBackend) createDescriptorPool() error {
	sizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeStorageImage, DescriptorCount: 64},
	}
	info := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       32,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
	}
	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(vb.device, &info, nil, &pool); res != vk.Success {
		return fmt.Errorf("vkCreateDescriptorPool failed: %d", res)
	}
	vb.descriptorPool = pool

	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{vb.descriptorSetLayout},
	}
	sets := make([]vk.DescriptorSet, 1)
	if res := vk.AllocateDescriptorSets(vb.device, &allocInfo, sets); res != vk.Success {
		return fmt.Errorf("vkAllocateDescriptorSets failed: %d", res)
	}
	vb.descriptorSet = sets[0]
	return nil
}

func (vb *gpuVulkanBackend) findMemoryType(typeFilter uint32, properties vk.MemoryPropertyFlags) (uint32, error) {
	var props vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(vb.physicalDevice, &props)
	props.Deref()
	for i := uint32(0); i < props.MemoryTypeCount; i++ {
		props.MemoryTypes[i].Deref()
		if typeFilter&(1<<i) != 0 && props.MemoryTypes[i].PropertyFlags&properties == properties {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no suitable memory type")
}

func vkFormatOf(f Format) vk.Format {
	switch f {
	case FormatBGRA8:
		return vk.FormatB8g8r8a8Unorm
	case FormatRGBA8:
		return vk.FormatR8g8b8a8Unorm
	case FormatR32G32B32A32Float:
		return vk.FormatR32g32b32a32Sfloat
	case FormatR8:
		return vk.FormatR8Unorm
	case FormatR8G8:
		return vk.FormatR8g8Unorm
	default:
		return vk.FormatR8g8b8a8Unorm
	}
}

// runOnce records cmd into the backend's single reusable command buffer,
// submits it, and blocks until the fence signals. Every multi-step GPU
// operation in this backend goes through it; there is no frame pipelining
// since capture happens at most once per host frame.
func (vb *gpuVulkanBackend) runOnce(record func(cmd vk.CommandBuffer)) error {
	vk.WaitForFences(vb.device, 1, []vk.Fence{vb.fence}, vk.True, ^uint64(0))
	vk.ResetFences(vb.device, 1, []vk.Fence{vb.fence})
	vk.ResetCommandBuffer(vb.commandBuffer, 0)

	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	vk.BeginCommandBuffer(vb.commandBuffer, &beginInfo)
	record(vb.commandBuffer)
	if res := vk.EndCommandBuffer(vb.commandBuffer); res != vk.Success {
		return fmt.Errorf("vkEndCommandBuffer failed: %d", res)
	}

	submit := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{vb.commandBuffer},
	}
	if res := vk.QueueSubmit(vb.queue, 1, []vk.SubmitInfo{submit}, vb.fence); res != vk.Success {
		return fmt.Errorf("vkQueueSubmit failed: %d", res)
	}
	vk.WaitForFences(vb.device, 1, []vk.Fence{vb.fence}, vk.True, ^uint64(0))
	return nil
}

func (vb *gpuVulkanBackend) CreateTexture(ctx context.Context, desc TextureDesc) (*Texture, error) {
	vb.mu.Lock()
	defer vb.mu.Unlock()

	format := vkFormatOf(desc.Format)
	usage := vk.ImageUsageFlags(vk.ImageUsageStorageBit | vk.ImageUsageTransferSrcBit | vk.ImageUsageTransferDstBit)

	imageInfo := vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     vk.ImageType2d,
		Format:        format,
		Extent:        vk.Extent3D{Width: desc.Width, Height: desc.Height, Depth: 1},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         usage,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	var img vk.Image
	if res := vk.CreateImage(vb.device, &imageInfo, nil, &img); res != vk.Success {
		return nil, &GPUError{Operation: "create_texture", Details: "vkCreateImage", Err: fmt.Errorf("result %d", res)}
	}

	var memReqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(vb.device, img, &memReqs)
	memReqs.Deref()
	memType, err := vb.findMemoryType(memReqs.MemoryTypeBits, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		vk.DestroyImage(vb.device, img, nil)
		return nil, &GPUError{Operation: "create_texture", Details: "memory type", Err: err}
	}
	allocInfo := vk.MemoryAllocateInfo{SType: vk.StructureTypeMemoryAllocateInfo, AllocationSize: memReqs.Size, MemoryTypeIndex: memType}
	var mem vk.DeviceMemory
	if res := vk.AllocateMemory(vb.device, &allocInfo, nil, &mem); res != vk.Success {
		vk.DestroyImage(vb.device, img, nil)
		return nil, &GPUError{Operation: "create_texture", Details: "vkAllocateMemory", Err: fmt.Errorf("result %d", res)}
	}
	vk.BindImageMemory(vb.device, img, mem, 0)

	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	var view vk.ImageView
	if res := vk.CreateImageView(vb.device, &viewInfo, nil, &view); res != vk.Success {
		vk.FreeMemory(vb.device, mem, nil)
		vk.DestroyImage(vb.device, img, nil)
		return nil, &GPUError{Operation: "create_texture", Details: "vkCreateImageView", Err: fmt.Errorf("result %d", res)}
	}

	rowSize := int(desc.Width) * bytesPerPixel(desc.Format)
	vkt := &vkTexture{
		id: vb.nextID.Add(1), desc: desc, image: img, memory: mem, view: view,
		format: format, rowSize: rowSize,
	}

	if err := vb.transitionToGeneral(vkt); err != nil {
		vb.destroyVkTexture(vkt)
		return nil, &GPUError{Operation: "create_texture", Details: "layout transition", Err: err}
	}

	if desc.Caps&CapDownloadable != 0 {
		if err := vb.createStagingBuffer(vkt); err != nil {
			vb.destroyVkTexture(vkt)
			return nil, &GPUError{Operation: "create_texture", Details: "staging buffer", Err: err}
		}
	}

	if desc.InitialData != nil {
		if err := vb.uploadInitialData(vkt, desc.InitialData); err != nil {
			vb.destroyVkTexture(vkt)
			return nil, &GPUError{Operation: "create_texture", Details: "initial data upload", Err: err}
		}
	}

	vb.textures[vkt.id] = vkt
	return &Texture{id: vkt.id, Desc: desc, backend: vb}, nil
}

// transitionToGeneral moves a freshly created image out of UNDEFINED into
// GENERAL, the one layout every compute/copy path in this backend assumes.
func (vb *gpuVulkanBackend) transitionToGeneral(t *vkTexture) error {
	return vb.runOnce(func(cmd vk.CommandBuffer) {
		barrier := vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			OldLayout:           vk.ImageLayoutUndefined,
			NewLayout:           vk.ImageLayoutGeneral,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               t.image,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}
		vk.CmdPipelineBarrier(cmd,
			vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
			vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
			0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
	})
}

func (vb *gpuVulkanBackend) createStagingBuffer(t *vkTexture) error {
	size := vk.DeviceSize(t.rowSize * int(t.desc.Height))
	info := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        size,
		Usage:       vk.BufferUsageFlags(vk.BufferUsageTransferDstBit | vk.BufferUsageTransferSrcBit),
		SharingMode: vk.SharingModeExclusive,
	}
	var buf vk.Buffer
	if res := vk.CreateBuffer(vb.device, &info, nil, &buf); res != vk.Success {
		return fmt.Errorf("vkCreateBuffer (staging) failed: %d", res)
	}
	var memReqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(vb.device, buf, &memReqs)
	memReqs.Deref()
	memType, err := vb.findMemoryType(memReqs.MemoryTypeBits, vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		vk.DestroyBuffer(vb.device, buf, nil)
		return err
	}
	allocInfo := vk.MemoryAllocateInfo{SType: vk.StructureTypeMemoryAllocateInfo, AllocationSize: memReqs.Size, MemoryTypeIndex: memType}
	var mem vk.DeviceMemory
	if res := vk.AllocateMemory(vb.device, &allocInfo, nil, &mem); res != vk.Success {
		vk.DestroyBuffer(vb.device, buf, nil)
		return fmt.Errorf("vkAllocateMemory (staging) failed: %d", res)
	}
	vk.BindBufferMemory(vb.device, buf, mem, 0)
	t.stagingBuffer = buf
	t.stagingMemory = mem
	return nil
}

func (vb *gpuVulkanBackend) uploadInitialData(t *vkTexture, data []byte) error {
	hadStaging := t.stagingBuffer != nil
	if !hadStaging {
		if err := vb.createStagingBuffer(t); err != nil {
			return err
		}
	}
	var ptr unsafe.Pointer
	vk.MapMemory(vb.device, t.stagingMemory, 0, vk.DeviceSize(len(data)), 0, &ptr)
	vk.Memcopy(ptr, data)
	vk.UnmapMemory(vb.device, t.stagingMemory)

	err := vb.runOnce(func(cmd vk.CommandBuffer) {
		region := vk.BufferImageCopy{
			ImageSubresource: vk.ImageSubresourceLayers{AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit), LayerCount: 1},
			ImageExtent:      vk.Extent3D{Width: t.desc.Width, Height: t.desc.Height, Depth: 1},
		}
		vk.CmdCopyBufferToImage(cmd, t.stagingBuffer, t.image, vk.ImageLayoutGeneral, 1, []vk.BufferImageCopy{region})
	})
	if !hadStaging {
		vk.DestroyBuffer(vb.device, t.stagingBuffer, nil)
		vk.FreeMemory(vb.device, t.stagingMemory, nil)
		t.stagingBuffer, t.stagingMemory = nil, nil
	}
	return err
}

func (vb *gpuVulkanBackend) CreateTextureFromFile(ctx context.Context, path string) (*Texture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &GPUError{Operation: "create_texture_from_file", Details: path, Err: err}
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, &GPUError{Operation: "create_texture_from_file", Details: path, Err: err}
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	pixels := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, a := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			o := (y*w + x) * 4
			pixels[o], pixels[o+1], pixels[o+2], pixels[o+3] = byte(r>>8), byte(g>>8), byte(b>>8), byte(a>>8)
		}
	}
	return vb.CreateTexture(ctx, TextureDesc{
		Width: uint32(w), Height: uint32(h), Format: FormatRGBA8, Usage: UsageImmutable,
		ViewAccess: ViewSRV, InitialData: pixels,
	})
}

// OpenSharedTexture interprets handle as a pointer to a host-mapped region
// already holding desc.Width*desc.Height pixels in desc.Format, tightly
// packed. The platform bridge is what produces such a region (the shared
// frame buffer the host writes the swapchain backbuffer into); this backend
// does not import a platform GPU handle directly.
func (vb *gpuVulkanBackend) OpenSharedTexture(ctx context.Context, handle uintptr, desc TextureDesc) (*Texture, error) {
	if handle == 0 {
		return nil, &GPUError{Operation: "open_shared_texture", Details: "nil handle"}
	}
	size := int(desc.Width) * int(desc.Height) * bytesPerPixel(desc.Format)
	data := unsafe.Slice((*byte)(unsafe.Pointer(handle)), size)
	desc.InitialData = append([]byte(nil), data...)
	return vb.CreateTexture(ctx, desc)
}

func (vb *gpuVulkanBackend) DestroyTexture(tex *Texture) error {
	vb.mu.Lock()
	defer vb.mu.Unlock()
	vkt, ok := vb.textures[tex.id]
	if !ok {
		return nil
	}
	vb.destroyVkTexture(vkt)
	delete(vb.textures, tex.id)
	return nil
}

func (vb *gpuVulkanBackend) destroyVkTexture(t *vkTexture) {
	if t.stagingBuffer != nil {
		vk.DestroyBuffer(vb.device, t.stagingBuffer, nil)
		vk.FreeMemory(vb.device, t.stagingMemory, nil)
	}
	if t.view != nil {
		vk.DestroyImageView(vb.device, t.view, nil)
	}
	if t.image != nil {
		vk.DestroyImage(vb.device, t.image, nil)
	}
	if t.memory != nil {
		vk.FreeMemory(vb.device, t.memory, nil)
	}
}

func (vb *gpuVulkanBackend) GetTextureSRV(tex *Texture) (View, error) {
	if tex.Desc.ViewAccess&ViewSRV == 0 {
		return View{}, &GPUError{Operation: "get_texture_srv", Details: "texture has no SRV binding"}
	}
	return View{texture: tex, kind: ViewSRV}, nil
}

func (vb *gpuVulkanBackend) GetTextureRTV(tex *Texture) (View, error) {
	if tex.Desc.ViewAccess&ViewRTV == 0 {
		return View{}, &GPUError{Operation: "get_texture_rtv", Details: "texture has no RTV binding"}
	}
	return View{texture: tex, kind: ViewRTV}, nil
}

func (vb *gpuVulkanBackend) GetTextureUAV(tex *Texture) (View, error) {
	if tex.Desc.ViewAccess&ViewUAV == 0 {
		return View{}, &GPUError{Operation: "get_texture_uav", Details: "texture has no UAV binding"}
	}
	return View{texture: tex, kind: ViewUAV}, nil
}

func (vb *gpuVulkanBackend) GetTextureSize(tex *Texture) (uint32, uint32, int) {
	return tex.Desc.Width, tex.Desc.Height, int(tex.Desc.Width) * bytesPerPixel(tex.Desc.Format)
}

func (vb *gpuVulkanBackend) CopyTexture(ctx context.Context, dst, src *Texture) error {
	vb.mu.Lock()
	defer vb.mu.Unlock()
	s, ok := vb.textures[src.id]
	if !ok {
		return &GPUError{Operation: "copy_texture", Details: "unknown src"}
	}
	d, ok := vb.textures[dst.id]
	if !ok {
		return &GPUError{Operation: "copy_texture", Details: "unknown dst"}
	}
	err := vb.runOnce(func(cmd vk.CommandBuffer) {
		region := vk.ImageCopy{
			SrcSubresource: vk.ImageSubresourceLayers{AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit), LayerCount: 1},
			DstSubresource: vk.ImageSubresourceLayers{AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit), LayerCount: 1},
			Extent:         vk.Extent3D{Width: dst.Desc.Width, Height: dst.Desc.Height, Depth: 1},
		}
		vk.CmdCopyImage(cmd, s.image, vk.ImageLayoutGeneral, d.image, vk.ImageLayoutGeneral, 1, []vk.ImageCopy{region})
	})
	if err != nil {
		return &GPUError{Operation: "copy_texture", Err: err}
	}
	return nil
}

func (vb *gpuVulkanBackend) ClearRTV(ctx context.Context, rtv View, color [4]float32) error {
	vb.mu.Lock()
	defer vb.mu.Unlock()
	t, ok := vb.textures[rtv.texture.id]
	if !ok {
		return &GPUError{Operation: "clear_rtv", Details: "unknown texture"}
	}
	err := vb.runOnce(func(cmd vk.CommandBuffer) {
		clearColor := vk.NewClearColorValue(color[:])
		rng := vk.ImageSubresourceRange{AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit), LevelCount: 1, LayerCount: 1}
		vk.CmdClearColorImage(cmd, t.image, vk.ImageLayoutGeneral, &clearColor, 1, []vk.ImageSubresourceRange{rng})
	})
	if err != nil {
		return &GPUError{Operation: "clear_rtv", Err: err}
	}
	return nil
}

// dispatchKernel binds src/dst storage images to the shared descriptor set,
// pushes constants, and dispatches enough 16x16 workgroups to cover dst.
func (vb *gpuVulkanBackend) dispatchKernel(pipeline vk.Pipeline, src, dst *vkTexture, pushConstants unsafe.Pointer, pcSize int) error {
	writes := []vk.WriteDescriptorSet{
		{
			SType: vk.StructureTypeWriteDescriptorSet, DstSet: vb.descriptorSet, DstBinding: 0,
			DescriptorCount: 1, DescriptorType: vk.DescriptorTypeStorageImage,
			PImageInfo: []vk.DescriptorImageInfo{{ImageView: src.view, ImageLayout: vk.ImageLayoutGeneral}},
		},
		{
			SType: vk.StructureTypeWriteDescriptorSet, DstSet: vb.descriptorSet, DstBinding: 1,
			DescriptorCount: 1, DescriptorType: vk.DescriptorTypeStorageImage,
			PImageInfo: []vk.DescriptorImageInfo{{ImageView: dst.view, ImageLayout: vk.ImageLayoutGeneral}},
		},
	}
	vk.UpdateDescriptorSets(vb.device, uint32(len(writes)), writes, 0, nil)

	groupsX := (dst.desc.Width + 15) / 16
	groupsY := (dst.desc.Height + 15) / 16

	return vb.runOnce(func(cmd vk.CommandBuffer) {
		vk.CmdBindPipeline(cmd, vk.PipelineBindPointCompute, pipeline)
		vk.CmdBindDescriptorSets(cmd, vk.PipelineBindPointCompute, vb.pipelineLayout, 0, 1, []vk.DescriptorSet{vb.descriptorSet}, 0, nil)
		if pcSize > 0 {
			vk.CmdPushConstants(cmd, vb.pipelineLayout, vk.ShaderStageFlags(vk.ShaderStageComputeBit), 0, uint32(pcSize), pushConstants)
		}
		vk.CmdDispatch(cmd, groupsX, groupsY, 1)
	})
}

func (vb *gpuVulkanBackend) DrawOverlay(ctx context.Context, dst *Texture, src *Texture, desc OverlayDesc) error {
	vb.mu.Lock()
	defer vb.mu.Unlock()
	s, ok := vb.textures[src.id]
	if !ok {
		return &GPUError{Operation: "draw_overlay", Details: "unknown src"}
	}
	d, ok := vb.textures[dst.id]
	if !ok {
		return &GPUError{Operation: "draw_overlay", Details: "unknown dst"}
	}
	pc := overlayPushConstants{DstOriginX: int32(desc.Rect.X), DstOriginY: int32(desc.Rect.Y), BlendMode: uint32(desc.Blend)}
	if err := vb.dispatchKernel(vb.overlayPipeline, s, d, unsafe.Pointer(&pc), int(unsafe.Sizeof(pc))); err != nil {
		return &GPUError{Operation: "draw_overlay", Err: err}
	}
	return nil
}

func (vb *gpuVulkanBackend) MotionSample(ctx context.Context, work *Texture, src *Texture, weight float32, clear bool) error {
	vb.mu.Lock()
	defer vb.mu.Unlock()
	s, ok := vb.textures[src.id]
	if !ok {
		return &GPUError{Operation: "motion_sample", Details: "unknown src"}
	}
	w, ok := vb.textures[work.id]
	if !ok {
		return &GPUError{Operation: "motion_sample", Details: "unknown work texture"}
	}
	var clearFlag uint32
	if clear {
		clearFlag = 1
	}
	pc := motionSamplePushConstants{Weight: weight, ClearFirst: clearFlag}
	if err := vb.dispatchKernel(vb.motionSamplePipeline, s, w, unsafe.Pointer(&pc), int(unsafe.Sizeof(pc))); err != nil {
		return &GPUError{Operation: "motion_sample", Err: err}
	}
	return nil
}

func (vb *gpuVulkanBackend) CreateConversion(ctx context.Context, desc ConversionDesc) (*Conversion, error) {
	planes := planeDescsFor(desc)
	if planes == nil {
		return nil, &GPUError{Operation: "create_conversion_context", Details: "unsupported destination format"}
	}
	conv := &Conversion{Desc: desc, Planes: planes}
	for i, p := range planes {
		tex, err := vb.CreateTexture(ctx, TextureDesc{
			Width: p.Width, Height: p.Height, Format: p.Format,
			Usage: UsageDefault, ViewAccess: ViewUAV, Caps: CapDownloadable,
		})
		if err != nil {
			for j := 0; j < i; j++ {
				vb.DestroyTexture(conv.outputs[j])
			}
			return nil, err
		}
		conv.outputs[i] = tex
	}
	return conv, nil
}

func (vb *gpuVulkanBackend) DestroyConversion(c *Conversion) error {
	for i := 0; i < PlaneCount(c.Desc.DestFormat); i++ {
		if c.outputs[i] != nil {
			vb.DestroyTexture(c.outputs[i])
		}
	}
	return nil
}

func (vb *gpuVulkanBackend) ConvertPixelFormat(ctx context.Context, conv *Conversion, src *Texture) error {
	m, offset := colorMatrix3x3(conv.Desc.DestColorSpace)
	n := PlaneCount(conv.Desc.DestFormat)
	for i := 0; i < n; i++ {
		shiftX, shiftY := uint32(0), uint32(0)
		if conv.Planes[i].Width < conv.Desc.Width {
			shiftX = 1
		}
		if conv.Planes[i].Height < conv.Desc.Height {
			shiftY = 1
		}
		pc := newConvertPushConstants(m, offset, i, shiftX, shiftY)

		vb.mu.Lock()
		s, ok := vb.textures[src.id]
		d, ok2 := vb.textures[conv.outputs[i].id]
		vb.mu.Unlock()
		if !ok || !ok2 {
			return &GPUError{Operation: "convert_pixel_formats", Details: "unknown texture"}
		}
		if err := vb.dispatchKernel(vb.convertPipeline, s, d, unsafe.Pointer(&pc), int(unsafe.Sizeof(pc))); err != nil {
			return &GPUError{Operation: "convert_pixel_formats", Details: fmt.Sprintf("plane %d", i), Err: err}
		}
	}
	return nil
}

func (vb *gpuVulkanBackend) DownloadTexture(ctx context.Context, tex *Texture) ([]byte, error) {
	vb.mu.Lock()
	t, ok := vb.textures[tex.id]
	vb.mu.Unlock()
	if !ok {
		return nil, &GPUError{Operation: "download_texture", Details: "unknown texture"}
	}
	if t.stagingBuffer == nil {
		if err := vb.createStagingBuffer(t); err != nil {
			return nil, &GPUError{Operation: "download_texture", Details: "staging buffer", Err: err}
		}
	}
	err := vb.runOnce(func(cmd vk.CommandBuffer) {
		region := vk.BufferImageCopy{
			ImageSubresource: vk.ImageSubresourceLayers{AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit), LayerCount: 1},
			ImageExtent:      vk.Extent3D{Width: t.desc.Width, Height: t.desc.Height, Depth: 1},
		}
		vk.CmdCopyImageToBuffer(cmd, t.image, vk.ImageLayoutGeneral, t.stagingBuffer, 1, []vk.BufferImageCopy{region})
	})
	if err != nil {
		return nil, &GPUError{Operation: "download_texture", Err: err}
	}

	size := t.rowSize * int(t.desc.Height)
	out := make([]byte, size)
	var ptr unsafe.Pointer
	vk.MapMemory(vb.device, t.stagingMemory, 0, vk.DeviceSize(size), 0, &ptr)
	copy(out, unsafe.Slice((*byte)(ptr), size))
	vk.UnmapMemory(vb.device, t.stagingMemory)
	return out, nil
}

func (vb *gpuVulkanBackend) CreateTextFormat(desc TextFormatDesc, target *Texture) (*TextFormat, error) {
	return &TextFormat{Desc: desc, Target: target}, nil
}

func (vb *gpuVulkanBackend) DrawText(ctx context.Context, tf *TextFormat, text string, rect Rect) error {
	pixels := rasterizeText(tf.Desc, text, rect.W, rect.H)
	vb.mu.Lock()
	t, ok := vb.textures[tf.Target.id]
	vb.mu.Unlock()
	if !ok {
		return &GPUError{Operation: "draw_text", Details: "unknown target"}
	}
	if err := vb.uploadRegion(t, rect, pixels); err != nil {
		return &GPUError{Operation: "draw_text", Err: err}
	}
	return nil
}

// uploadRegion writes an RGBA8 patch into a subregion of t via the staging
// buffer + CmdCopyBufferToImage path, mirroring CreateTexture's initial-data
// upload at a sub-rectangle instead of the whole image.
func (vb *gpuVulkanBackend) uploadRegion(t *vkTexture, rect Rect, pixels []byte) error {
	hadStaging := t.stagingBuffer != nil
	if !hadStaging {
		if err := vb.createStagingBuffer(t); err != nil {
			return err
		}
	}
	var ptr unsafe.Pointer
	vk.MapMemory(vb.device, t.stagingMemory, 0, vk.DeviceSize(len(pixels)), 0, &ptr)
	vk.Memcopy(ptr, pixels)
	vk.UnmapMemory(vb.device, t.stagingMemory)

	err := vb.runOnce(func(cmd vk.CommandBuffer) {
		region := vk.BufferImageCopy{
			ImageSubresource: vk.ImageSubresourceLayers{AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit), LayerCount: 1},
			ImageOffset:      vk.Offset3D{X: int32(rect.X), Y: int32(rect.Y), Z: 0},
			ImageExtent:      vk.Extent3D{Width: uint32(rect.W), Height: uint32(rect.H), Depth: 1},
		}
		vk.CmdCopyBufferToImage(cmd, t.stagingBuffer, t.image, vk.ImageLayoutGeneral, 1, []vk.BufferImageCopy{region})
	})
	if !hadStaging {
		vk.DestroyBuffer(vb.device, t.stagingBuffer, nil)
		vk.FreeMemory(vb.device, t.stagingMemory, nil)
		t.stagingBuffer, t.stagingMemory = nil, nil
	}
	return err
}

func (vb *gpuVulkanBackend) DestroyTextFormat(tf *TextFormat) error { return nil }

func (vb *gpuVulkanBackend) Close() error {
	vb.mu.Lock()
	defer vb.mu.Unlock()
	if len(vb.textures) != 0 {
		vb.log.Errorf("gpu backend closed with %d textures still alive", len(vb.textures))
		for id, t := range vb.textures {
			vb.destroyVkTexture(t)
			delete(vb.textures, id)
		}
	}
	vk.DeviceWaitIdle(vb.device)
	vb.destroyDescriptorPool()
	vb.destroyComputePipelines()
	vb.destroyDescriptorLayout()
	vb.destroyFence()
	vb.destroyCommandPool()
	vb.destroyDevice()
	vb.destroyInstance()
	return nil
}

func (vb *gpuVulkanBackend) destroyInstance() {
	if vb.instance != nil {
		vk.DestroyInstance(vb.instance, nil)
		vb.instance = nil
	}
}
func (vb *gpuVulkanBackend) destroyDevice() {
	if vb.device != nil {
		vk.DestroyDevice(vb.device, nil)
		vb.device = nil
	}
}
func (vb *gpuVulkanBackend) destroyCommandPool() {
	if vb.commandPool != vk.NullCommandPool {
		vk.DestroyCommandPool(vb.device, vb.commandPool, nil)
		vb.commandPool = vk.NullCommandPool
	}
}
func (vb *gpuVulkanBackend) destroyFence() {
	if vb.fence != nil {
		vk.DestroyFence(vb.device, vb.fence, nil)
		vb.fence = nil
	}
}
func (vb *gpuVulkanBackend) destroyDescriptorLayout() {
	if vb.pipelineLayout != nil {
		vk.DestroyPipelineLayout(vb.device, vb.pipelineLayout, nil)
	}
	if vb.descriptorSetLayout != nil {
		vk.DestroyDescriptorSetLayout(vb.device, vb.descriptorSetLayout, nil)
	}
}
func (vb *gpuVulkanBackend) destroyComputePipelines() {
	for _, p := range []vk.Pipeline{vb.motionSamplePipeline, vb.overlayPipeline, vb.convertPipeline} {
		if p != nil {
			vk.DestroyPipeline(vb.device, p, nil)
		}
	}
}
func (vb *gpuVulkanBackend) destroyDescriptorPool() {
	if vb.descriptorPool != nil {
		vk.DestroyDescriptorPool(vb.device, vb.descriptorPool, nil)
	}
}

// safeString returns a NUL-terminated string Vulkan's C-string fields can
// point into without the caller needing to keep a separate byte buffer alive.
func safeString(s string) string { return s + "\x00" }

// sliceUint32 reinterprets a SPIR-V byte blob as the uint32 words the
// Vulkan loader expects, matching the teacher's own shader-module helper.
func sliceUint32(b []byte) []uint32 {
	out := make([]uint32, len(b)/4)
	for i := range out {
		out[i] = uint32(b[i*4]) | uint32(b[i*4+1])<<8 | uint32(b[i*4+2])<<16 | uint32(b[i*4+3])<<24
	}
	return out
}
